package gateway

import (
	"context"
	"net/url"

	"github.com/sakif/inkpad/internal/model"
	"github.com/sakif/inkpad/internal/session"
)

// Login exchanges credentials for an access token. The backend expects the
// OAuth2 password-grant form encoding (username/password form fields), not
// JSON.
//
// The returned user summary is derived from the token's subject claim —
// the backend's login response carries only the token, and there is no
// profile endpoint to fetch the authoritative record from. ID and email
// therefore stay zero-valued until a register response supplies them.
func (c *Client) Login(ctx context.Context, creds model.Credentials) (model.TokenResponse, model.User, error) {
	form := url.Values{
		"username": []string{creds.Username},
		"password": []string{creds.Password},
	}

	var tok model.TokenResponse
	if err := c.do(ctx, "POST", "/auth/login", nil, form, &tok); err != nil {
		return model.TokenResponse{}, model.User{}, err
	}
	if err := tok.Validate(); err != nil {
		return model.TokenResponse{}, model.User{}, err
	}

	user := model.User{Username: creds.Username}
	if identity, err := session.IdentityFromToken(tok.AccessToken); err == nil {
		user.Username = identity.Username
	}

	return tok, user, nil
}

// Register creates a new account. The response is the authoritative user
// record; callers typically follow up with Login to obtain a token.
func (c *Client) Register(ctx context.Context, reg model.Registration) (model.User, error) {
	var user model.User
	if err := c.do(ctx, "POST", "/auth/register", nil, reg, &user); err != nil {
		return model.User{}, err
	}
	if err := user.Validate(); err != nil {
		return model.User{}, err
	}
	return user, nil
}
