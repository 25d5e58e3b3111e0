// Package model defines the data structures exchanged with the backend API.
// In Go, we use structs to represent our data — similar to classes in other
// languages, but without inheritance. Go favours composition over inheritance.
//
// All shapes in this package mirror the backend's JSON exactly (snake_case
// field names via struct tags). Response shapes carry a Validate method that
// is called at the gateway boundary: a payload that decodes but is missing a
// required field is rejected as a malformed response instead of letting
// zero values leak silently through the rest of the client.
package model

import (
	"time"

	"github.com/sakif/inkpad/internal/apperror"
)

// User is the account summary the backend returns on registration and
// embeds in article responses as the author.
//
// WHY ID int (not string)?
// The backend assigns integer primary keys. Zero means "not assigned" —
// a user derived from a bare login token has no ID until the backend
// supplies one (see session package docs for that shortcut).
type User struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the fields the client relies on.
// Email may legitimately be empty for a token-derived identity, so only
// the username is required.
func (u *User) Validate() error {
	if u.Username == "" {
		return apperror.MalformedResponse("username", "user payload has no username")
	}
	return nil
}

// Credentials is the login request. The backend expects it form-encoded
// (OAuth2 password-grant style), not as JSON.
type Credentials struct {
	Username string
	Password string
}

// Registration is the JSON body for POST /auth/register.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is the body of a successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (t *TokenResponse) Validate() error {
	if t.AccessToken == "" {
		return apperror.MalformedResponse("access_token", "login response has no access_token")
	}
	return nil
}
