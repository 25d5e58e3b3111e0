package model

import (
	"time"

	"github.com/sakif/inkpad/internal/apperror"
)

// Article is a markdown document owned by the backend; the client only
// holds transient copies. ID is zero for an unsaved draft.
type Article struct {
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	IsPublished bool       `json:"is_published"`
	AuthorID    int        `json:"author_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	Author      User       `json:"author"`
	Tags        []Tag      `json:"tags"`
}

func (a *Article) Validate() error {
	if a.ID == 0 {
		return apperror.MalformedResponse("id", "article payload has no id")
	}
	if a.Title == "" {
		return apperror.MalformedResponse("title", "article payload has no title")
	}
	return nil
}

// ArticleCreate is the JSON body for POST /articles.
// Tags are referenced by id on write; the backend embeds full Tag objects
// on read. TagIDs marshals as an empty list (not null) when no tags are
// selected, matching what the backend expects.
type ArticleCreate struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	TagIDs  []int  `json:"tag_ids"`
}

// ArticleUpdate is the JSON body for PUT /articles/{id}. Nil fields are
// omitted so the backend only touches what the caller set.
type ArticleUpdate struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
	TagIDs  *[]int  `json:"tag_ids,omitempty"`
}
