package model

import (
	"time"

	"github.com/sakif/inkpad/internal/apperror"
)

// Tag labels articles. Name is unique per account scope; Color is a
// display hint (hex string) the editor uses for the tag badge.
type Tag struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

func (t *Tag) Validate() error {
	if t.ID == 0 {
		return apperror.MalformedResponse("id", "tag payload has no id")
	}
	if t.Name == "" {
		return apperror.MalformedResponse("name", "tag payload has no name")
	}
	return nil
}

// TagCreate is the JSON body for POST /tags and PUT /tags/{id}.
type TagCreate struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}
