package gateway

import (
	"context"
	"fmt"

	"github.com/sakif/inkpad/internal/model"
)

// ListArticles returns the authenticated user's own articles, optionally
// filtered to one tag.
func (c *Client) ListArticles(ctx context.Context, tagID *int) ([]model.Article, error) {
	var articles []model.Article
	if err := c.do(ctx, "GET", "/articles", tagQuery(tagID), nil, &articles); err != nil {
		return nil, err
	}
	for i := range articles {
		if err := articles[i].Validate(); err != nil {
			return nil, err
		}
	}
	return articles, nil
}

// ListPublicArticles returns every published article, optionally filtered
// to one tag. Works without a session.
func (c *Client) ListPublicArticles(ctx context.Context, tagID *int) ([]model.Article, error) {
	var articles []model.Article
	if err := c.do(ctx, "GET", "/articles/public", tagQuery(tagID), nil, &articles); err != nil {
		return nil, err
	}
	for i := range articles {
		if err := articles[i].Validate(); err != nil {
			return nil, err
		}
	}
	return articles, nil
}

// GetArticle fetches one article by id. The backend enforces visibility:
// only the author may read an unpublished article.
func (c *Client) GetArticle(ctx context.Context, id int) (model.Article, error) {
	var article model.Article
	if err := c.do(ctx, "GET", fmt.Sprintf("/articles/%d", id), nil, nil, &article); err != nil {
		return model.Article{}, err
	}
	if err := article.Validate(); err != nil {
		return model.Article{}, err
	}
	return article, nil
}

// CreateArticle saves a new draft. New articles are always unpublished;
// the backend assigns the id.
func (c *Client) CreateArticle(ctx context.Context, in model.ArticleCreate) (model.Article, error) {
	if in.TagIDs == nil {
		in.TagIDs = []int{} // backend wants a list, not null
	}
	var article model.Article
	if err := c.do(ctx, "POST", "/articles", nil, in, &article); err != nil {
		return model.Article{}, err
	}
	if err := article.Validate(); err != nil {
		return model.Article{}, err
	}
	return article, nil
}

// UpdateArticle applies a partial update; nil fields are left untouched.
func (c *Client) UpdateArticle(ctx context.Context, id int, in model.ArticleUpdate) (model.Article, error) {
	var article model.Article
	if err := c.do(ctx, "PUT", fmt.Sprintf("/articles/%d", id), nil, in, &article); err != nil {
		return model.Article{}, err
	}
	if err := article.Validate(); err != nil {
		return model.Article{}, err
	}
	return article, nil
}

// DeleteArticle removes an article permanently.
func (c *Client) DeleteArticle(ctx context.Context, id int) error {
	return c.do(ctx, "DELETE", fmt.Sprintf("/articles/%d", id), nil, nil, nil)
}

// PublishArticle makes an article visible on the public feed.
func (c *Client) PublishArticle(ctx context.Context, id int) (model.Article, error) {
	var article model.Article
	if err := c.do(ctx, "POST", fmt.Sprintf("/articles/%d/publish", id), nil, nil, &article); err != nil {
		return model.Article{}, err
	}
	if err := article.Validate(); err != nil {
		return model.Article{}, err
	}
	return article, nil
}

// UnpublishArticle removes an article from the public feed.
func (c *Client) UnpublishArticle(ctx context.Context, id int) (model.Article, error) {
	var article model.Article
	if err := c.do(ctx, "POST", fmt.Sprintf("/articles/%d/unpublish", id), nil, nil, &article); err != nil {
		return model.Article{}, err
	}
	if err := article.Validate(); err != nil {
		return model.Article{}, err
	}
	return article, nil
}
