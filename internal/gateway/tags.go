package gateway

import (
	"context"
	"fmt"

	"github.com/sakif/inkpad/internal/model"
)

// ListTags returns every tag the account can see.
func (c *Client) ListTags(ctx context.Context) ([]model.Tag, error) {
	var tags []model.Tag
	if err := c.do(ctx, "GET", "/tags", nil, nil, &tags); err != nil {
		return nil, err
	}
	for i := range tags {
		if err := tags[i].Validate(); err != nil {
			return nil, err
		}
	}
	return tags, nil
}

// CreateTag creates a tag; the backend rejects duplicate names.
func (c *Client) CreateTag(ctx context.Context, in model.TagCreate) (model.Tag, error) {
	var tag model.Tag
	if err := c.do(ctx, "POST", "/tags", nil, in, &tag); err != nil {
		return model.Tag{}, err
	}
	if err := tag.Validate(); err != nil {
		return model.Tag{}, err
	}
	return tag, nil
}

// GetTag fetches one tag by id.
func (c *Client) GetTag(ctx context.Context, id int) (model.Tag, error) {
	var tag model.Tag
	if err := c.do(ctx, "GET", fmt.Sprintf("/tags/%d", id), nil, nil, &tag); err != nil {
		return model.Tag{}, err
	}
	if err := tag.Validate(); err != nil {
		return model.Tag{}, err
	}
	return tag, nil
}

// UpdateTag renames/recolors a tag.
func (c *Client) UpdateTag(ctx context.Context, id int, in model.TagCreate) (model.Tag, error) {
	var tag model.Tag
	if err := c.do(ctx, "PUT", fmt.Sprintf("/tags/%d", id), nil, in, &tag); err != nil {
		return model.Tag{}, err
	}
	if err := tag.Validate(); err != nil {
		return model.Tag{}, err
	}
	return tag, nil
}

// DeleteTag removes a tag.
func (c *Client) DeleteTag(ctx context.Context, id int) error {
	return c.do(ctx, "DELETE", fmt.Sprintf("/tags/%d", id), nil, nil, nil)
}
