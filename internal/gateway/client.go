// Package gateway is the module responsible for all outbound calls to the
// backend REST API.
//
// CONTRACT:
//   - Every request carries "Authorization: Bearer <token>" when the session
//     holds a token.
//   - A 401 response is the sole authorization-failure signal: the gateway
//     reports it to the session store exactly once per failure wave (see
//     Invalidator) and returns apperror.ErrUnauthorized to the caller.
//   - Network errors and non-401 failures propagate to the caller as failed
//     results — the gateway never retries and adds no timeout beyond what
//     the transport provides.
//   - Every operation is a pure request/response wrapper: path, method and
//     payload shaping only. Business rules (pre-flight validation, display
//     strings) live in the editor layer.
//
// Responses are decoded into internal/model shapes and validated at this
// boundary; a payload missing required fields fails with
// apperror.ErrMalformedResponse instead of leaking zero values.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sakif/inkpad/internal/apperror"
)

// Invalidator is the session store's side of the invalidation signal.
// InvalidateToken clears the session only if tok is still current, which
// collapses a wave of concurrent 401s into one effective invalidation.
type Invalidator interface {
	Token() string
	InvalidateToken(ctx context.Context, tok, reason string)
}

// Client talks to the backend. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	session Invalidator
	logger  *slog.Logger
}

// New creates a Client for the backend at baseURL (e.g.
// "http://localhost:8000/api"). httpClient may be nil, in which case
// http.DefaultClient is used.
func New(baseURL string, httpClient *http.Client, session Invalidator, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		session: session,
		logger:  logger,
	}
}

// errorBody is the backend's error envelope: {"detail": "..."}.
type errorBody struct {
	Detail string `json:"detail"`
}

// do performs one request/response cycle: builds the request, attaches the
// bearer token, maps failures to the apperror taxonomy, and decodes a
// successful body into out (when out is non-nil).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	var reqBody io.Reader
	contentType := ""
	switch b := body.(type) {
	case nil:
		// no body
	case url.Values:
		// Form-encoded — only the login endpoint uses this.
		reqBody = strings.NewReader(b.Encode())
		contentType = "application/x-www-form-urlencoded"
	default:
		encoded, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("gateway: encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
		contentType = "application/json"
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("gateway: building request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	// Remember which token this request went out with — if the backend
	// rejects it, this exact token (not whatever is current by then) is
	// what gets invalidated.
	token := c.session.Token()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Connectivity/transport failure — propagate unmodified as a
		// failed result, never retried here.
		return fmt.Errorf("gateway: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		detail := decodeDetail(resp.Body)
		if detail == "" {
			detail = "session expired, please log in again"
		}
		c.logger.Warn("backend rejected credential",
			slog.String("method", method),
			slog.String("path", path),
		)
		if token != "" {
			c.session.InvalidateToken(ctx, token, detail)
		}
		return apperror.Unauthorized(detail)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperror.MalformedResponse("", fmt.Sprintf("decoding %s %s response: %v", method, path, err))
	}
	return nil
}

// statusError maps a non-401 error response to the apperror taxonomy,
// surfacing the backend's detail message verbatim when one is present.
func (c *Client) statusError(resp *http.Response) error {
	detail := decodeDetail(resp.Body)

	switch resp.StatusCode {
	case http.StatusNotFound:
		if detail == "" {
			detail = "resource not found"
		}
		return &apperror.AppError{Err: apperror.ErrNotFound, Message: detail}
	case http.StatusForbidden:
		if detail == "" {
			detail = "permission denied"
		}
		return apperror.Forbidden(detail)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if detail == "" {
			detail = "request rejected by backend"
		}
		return apperror.ValidationFailed("", detail)
	default:
		if detail == "" {
			detail = fmt.Sprintf("backend returned status %d", resp.StatusCode)
		}
		return apperror.Backend(detail)
	}
}

// decodeDetail pulls the "detail" string out of an error body, tolerating
// bodies that aren't the expected envelope.
func decodeDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 1<<16))
	if err != nil {
		return ""
	}
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	return body.Detail
}

// tagQuery builds the optional ?tag_id= filter.
func tagQuery(tagID *int) url.Values {
	if tagID == nil {
		return nil
	}
	return url.Values{"tag_id": []string{strconv.Itoa(*tagID)}}
}
