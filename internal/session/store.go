// Package session holds the client's record of the currently authenticated
// user and their credential.
//
// SESSION LIFECYCLE:
// 1. Restore() reads the persisted token+user at startup (before the UI
//    serves any protected page — the loading gate)
// 2. Login() stores both pieces after a successful login/registration
// 3. Logout() clears both pieces on explicit user action
// 4. Invalidate() clears both pieces when the backend rejects the
//    credential, records a notice for the view layer, and fires the
//    registered invalidation callbacks
//
// INVARIANTS:
//   - token and user are always written/cleared together, under one lock
//   - persisted storage is a write-through mirror: the repository writes
//     happen inside the same critical section as the in-memory update, so
//     no reader can observe one without the other
//   - a corrupt persisted user payload is purged silently on restore and
//     the session comes up empty — never a user-visible error
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/inkpad/internal/model"
	"github.com/sakif/inkpad/internal/repository"
)

// Store is the single source of truth for authentication state. All
// mutations replace the whole session under one lock — never partial
// in-place field edits — so readers can never observe a torn state.
type Store struct {
	mu     sync.RWMutex
	repo   repository.StateRepository
	logger *slog.Logger

	token    string
	user     model.User
	hasUser  bool
	language string
	notice   string

	// Invalidation callbacks, registered once at wiring time.
	// Explicit registration (not ambient global dispatch) keeps the
	// gateway→session signal testable in isolation.
	onInvalidate []func(reason string)
}

// NewStore creates a Store backed by the given state repository.
func NewStore(repo repository.StateRepository, logger *slog.Logger) *Store {
	return &Store{
		repo:   repo,
		logger: logger,
	}
}

// OnInvalidate registers a callback fired whenever the session is
// invalidated by a rejected credential. Callbacks run synchronously, in
// registration order, while the session is already empty. Register all
// callbacks during wiring, before any request can fail.
func (s *Store) OnInvalidate(fn func(reason string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onInvalidate = append(s.onInvalidate, fn)
}

// Restore loads the persisted session. Call it once at startup, before the
// UI renders protected content.
//
// A missing token/user is not an error — the client is simply logged out.
// A user payload that does not parse as the expected shape is treated as
// corrupt local state: both entries are purged and the session stays empty,
// with no error returned.
func (s *Store) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lang, found, err := s.repo.Get(ctx, repository.KeyLanguage); err != nil {
		return fmt.Errorf("session: restoring language: %w", err)
	} else if found {
		s.language = lang
	}

	token, tokenFound, err := s.repo.Get(ctx, repository.KeyToken)
	if err != nil {
		return fmt.Errorf("session: restoring token: %w", err)
	}
	rawUser, userFound, err := s.repo.Get(ctx, repository.KeyUser)
	if err != nil {
		return fmt.Errorf("session: restoring user: %w", err)
	}

	// Both pieces must be present — one without the other violates the
	// write-together invariant and means a previous process died between
	// states that should be unobservable. Purge and start logged out.
	if !tokenFound || !userFound {
		if tokenFound || userFound {
			s.purgeLocked(ctx)
		}
		return nil
	}

	var user model.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil || user.Validate() != nil {
		s.logger.Warn("persisted user payload is corrupt, purging session",
			slog.String("error", fmt.Sprintf("%v", err)),
		)
		s.purgeLocked(ctx)
		return nil
	}

	s.token = token
	s.user = user
	s.hasUser = true

	s.logger.Info("session restored",
		slog.String("username", user.Username),
	)
	return nil
}

// Login stores the credential and user identity, persisting both before
// returning. The two writes are adjacent — no suspension point between
// them — so persisted state never holds one without the other.
func (s *Store) Login(ctx context.Context, token string, user model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rawUser, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("session: encoding user: %w", err)
	}
	if err := s.repo.Set(ctx, repository.KeyToken, token); err != nil {
		return fmt.Errorf("session: persisting token: %w", err)
	}
	if err := s.repo.Set(ctx, repository.KeyUser, string(rawUser)); err != nil {
		// Roll the token back so the invariant holds on disk too.
		s.repo.Delete(ctx, repository.KeyToken)
		return fmt.Errorf("session: persisting user: %w", err)
	}

	s.token = token
	s.user = user
	s.hasUser = true
	s.notice = ""

	s.logger.Info("session established", slog.String("username", user.Username))
	return nil
}

// Logout clears the session and any pending notice. Calling it while
// already logged out is a no-op.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked(ctx)
	s.notice = ""
	s.logger.Info("session cleared by logout")
}

// Invalidate clears the session like Logout, records a human-readable
// reason for the view layer, and fires the invalidation callbacks.
// Idempotent: invalidating an already-empty session leaves the same empty
// state (callbacks still fire so late listeners can redirect).
func (s *Store) Invalidate(ctx context.Context, reason string) {
	s.mu.Lock()
	s.purgeLocked(ctx)
	s.notice = reason
	callbacks := make([]func(string), len(s.onInvalidate))
	copy(callbacks, s.onInvalidate)
	s.mu.Unlock()

	s.logger.Warn("session invalidated", slog.String("reason", reason))
	for _, fn := range callbacks {
		fn(reason)
	}
}

// InvalidateToken invalidates the session only if tok is still the current
// credential. The gateway calls this with the exact token a request failed
// with, so a wave of concurrent 401s — all carrying the same rejected
// token — collapses to one effective invalidation: the first call clears
// the session, the rest see a mismatch and return without firing callbacks.
func (s *Store) InvalidateToken(ctx context.Context, tok, reason string) {
	s.mu.Lock()
	if s.token == "" || s.token != tok {
		s.mu.Unlock()
		return
	}
	s.purgeLocked(ctx)
	s.notice = reason
	callbacks := make([]func(string), len(s.onInvalidate))
	copy(callbacks, s.onInvalidate)
	s.mu.Unlock()

	s.logger.Warn("session invalidated", slog.String("reason", reason))
	for _, fn := range callbacks {
		fn(reason)
	}
}

// purgeLocked clears in-memory state and the persisted mirror.
// Caller must hold s.mu. Persistence failures are logged, not returned —
// the in-memory session must end up empty regardless.
func (s *Store) purgeLocked(ctx context.Context) {
	s.token = ""
	s.user = model.User{}
	s.hasUser = false
	if err := s.repo.Delete(ctx, repository.KeyToken, repository.KeyUser); err != nil {
		s.logger.Error("failed to purge persisted session",
			slog.String("error", err.Error()),
		)
	}
}

// Token returns the current credential, or "" when logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns the cached identity and whether one is present.
func (s *Store) User() (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user, s.hasUser
}

// Notice returns the reason recorded by the last invalidation, or "" if
// none is pending. The view layer shows it as a dismissible banner.
func (s *Store) Notice() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notice
}

// ClearNotice dismisses a pending invalidation notice.
func (s *Store) ClearNotice() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notice = ""
}

// Language returns the persisted UI locale code, or "" if never set.
func (s *Store) Language() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.language
}

// SetLanguage persists the UI locale. Independent of the auth lifecycle —
// it survives logout and invalidation.
func (s *Store) SetLanguage(ctx context.Context, lang string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Set(ctx, repository.KeyLanguage, lang); err != nil {
		return fmt.Errorf("session: persisting language: %w", err)
	}
	s.language = lang
	return nil
}

// TokenExpiry returns the expiry encoded in the current token, or the zero
// time when logged out or the token carries no readable expiry.
func (s *Store) TokenExpiry() time.Time {
	s.mu.RLock()
	tok := s.token
	s.mu.RUnlock()
	if tok == "" {
		return time.Time{}
	}
	identity, err := IdentityFromToken(tok)
	if err != nil {
		return time.Time{}
	}
	return identity.ExpiresAt
}
