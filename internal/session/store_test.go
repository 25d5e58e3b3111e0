package session

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/inkpad/internal/model"
	"github.com/sakif/inkpad/internal/repository"
)

// mockStateRepo is an in-memory StateRepository. Tests share one instance
// between two Stores to simulate "a fresh process reading the same disk".
type mockStateRepo struct {
	entries map[string]string
	setErr  error // when non-nil, Set fails with this
}

func newMockStateRepo() *mockStateRepo {
	return &mockStateRepo{entries: make(map[string]string)}
}

func (m *mockStateRepo) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *mockStateRepo) Set(_ context.Context, key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.entries[key] = value
	return nil
}

func (m *mockStateRepo) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testUser() model.User {
	return model.User{ID: 7, Username: "al", Email: "al@example.com", CreatedAt: time.Now().UTC()}
}

func TestLoginRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newMockStateRepo()

	first := NewStore(repo, testLogger())
	if err := first.Login(ctx, "tok-1", testUser()); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	// A second Store over the same repository models a process restart.
	second := NewStore(repo, testLogger())
	if err := second.Restore(ctx); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	if got := second.Token(); got != "tok-1" {
		t.Errorf("Token() = %q, want %q", got, "tok-1")
	}
	user, ok := second.User()
	if !ok {
		t.Fatal("User() reported no session after restore")
	}
	if user.Username != "al" || user.ID != 7 {
		t.Errorf("restored user = %+v, want username al, id 7", user)
	}
}

func TestRestoreCorruptUserPurges(t *testing.T) {
	ctx := context.Background()
	repo := newMockStateRepo()
	repo.entries[repository.KeyToken] = "tok-1"
	repo.entries[repository.KeyUser] = "{not json"

	store := NewStore(repo, testLogger())
	if err := store.Restore(ctx); err != nil {
		t.Fatalf("Restore returned error for corrupt state, want silent recovery: %v", err)
	}

	if store.Token() != "" {
		t.Error("session holds a token after corrupt restore")
	}
	if _, ok := store.User(); ok {
		t.Error("session holds a user after corrupt restore")
	}
	// The corrupt entries must be gone from storage too.
	if _, found := repo.entries[repository.KeyToken]; found {
		t.Error("persisted token was not purged")
	}
	if _, found := repo.entries[repository.KeyUser]; found {
		t.Error("persisted user was not purged")
	}
}

func TestRestoreTokenWithoutUserPurges(t *testing.T) {
	ctx := context.Background()
	repo := newMockStateRepo()
	repo.entries[repository.KeyToken] = "orphan"

	store := NewStore(repo, testLogger())
	if err := store.Restore(ctx); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if store.Token() != "" {
		t.Error("orphan token survived restore")
	}
	if _, found := repo.entries[repository.KeyToken]; found {
		t.Error("orphan token was not purged from storage")
	}
}

func TestInvalidateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newMockStateRepo(), testLogger())
	store.Login(ctx, "tok-1", testUser())

	store.Invalidate(ctx, "credential rejected")
	store.Invalidate(ctx, "credential rejected")

	if store.Token() != "" {
		t.Error("token present after double invalidate")
	}
	if _, ok := store.User(); ok {
		t.Error("user present after double invalidate")
	}
	if store.Notice() != "credential rejected" {
		t.Errorf("Notice() = %q, want the invalidation reason", store.Notice())
	}
}

func TestInvalidateTokenCollapsesFailureWave(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newMockStateRepo(), testLogger())
	store.Login(ctx, "tok-1", testUser())

	fired := 0
	store.OnInvalidate(func(reason string) { fired++ })

	// Three requests fail with 401 carrying the same token — the first
	// clears the session, the rest must be no-ops.
	for i := 0; i < 3; i++ {
		store.InvalidateToken(ctx, "tok-1", "credential rejected")
	}

	if fired != 1 {
		t.Errorf("invalidation callbacks fired %d times, want 1", fired)
	}
	if store.Token() != "" {
		t.Error("token survived the failure wave")
	}
}

func TestInvalidateTokenIgnoresStaleToken(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newMockStateRepo(), testLogger())
	store.Login(ctx, "tok-2", testUser())

	fired := 0
	store.OnInvalidate(func(reason string) { fired++ })

	// A 401 for an old credential must not clobber a newer session.
	store.InvalidateToken(ctx, "tok-1", "credential rejected")

	if fired != 0 {
		t.Error("callback fired for a stale token")
	}
	if store.Token() != "tok-2" {
		t.Errorf("Token() = %q, want the newer token to survive", store.Token())
	}
}

func TestLogoutClearsNotice(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newMockStateRepo(), testLogger())
	store.Login(ctx, "tok-1", testUser())
	store.Invalidate(ctx, "expired")

	store.Logout(ctx)

	if store.Notice() != "" {
		t.Errorf("Notice() = %q after logout, want empty", store.Notice())
	}
}

func TestLoginRollsBackTokenOnUserWriteFailure(t *testing.T) {
	ctx := context.Background()
	repo := newMockStateRepo()

	// Let the token write through, then fail the user write.
	calls := 0
	wrapped := &failAfterRepo{inner: repo, failAfter: 1, calls: &calls}
	store := NewStore(wrapped, testLogger())

	if err := store.Login(ctx, "tok-1", testUser()); err == nil {
		t.Fatal("Login succeeded despite user write failure")
	}
	if _, found := repo.entries[repository.KeyToken]; found {
		t.Error("token persisted without its user, write-together invariant broken")
	}
}

// failAfterRepo lets the first N Sets through, then fails.
type failAfterRepo struct {
	inner     *mockStateRepo
	failAfter int
	calls     *int
}

func (f *failAfterRepo) Get(ctx context.Context, key string) (string, bool, error) {
	return f.inner.Get(ctx, key)
}

func (f *failAfterRepo) Set(ctx context.Context, key, value string) error {
	if *f.calls >= f.failAfter {
		return context.DeadlineExceeded
	}
	*f.calls++
	return f.inner.Set(ctx, key, value)
}

func (f *failAfterRepo) Delete(ctx context.Context, keys ...string) error {
	return f.inner.Delete(ctx, keys...)
}

func TestLanguageRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newMockStateRepo()

	first := NewStore(repo, testLogger())
	if err := first.SetLanguage(ctx, "zh"); err != nil {
		t.Fatalf("SetLanguage failed: %v", err)
	}

	second := NewStore(repo, testLogger())
	if err := second.Restore(ctx); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if got := second.Language(); got != "zh" {
		t.Errorf("Language() = %q, want %q", got, "zh")
	}
}

func TestIdentityFromToken(t *testing.T) {
	// Sign a token the way the backend does: {"sub": username, "exp": ...}.
	// The signature key doesn't matter — IdentityFromToken never verifies.
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "al",
		"exp": exp.Unix(),
	})
	signed, err := tok.SignedString([]byte("not-the-backend-secret"))
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}

	identity, err := IdentityFromToken(signed)
	if err != nil {
		t.Fatalf("IdentityFromToken failed: %v", err)
	}
	if identity.Username != "al" {
		t.Errorf("Username = %q, want %q", identity.Username, "al")
	}
	if !identity.ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", identity.ExpiresAt, exp)
	}
}

func TestIdentityFromTokenRejectsGarbage(t *testing.T) {
	if _, err := IdentityFromToken("not-a-jwt"); err == nil {
		t.Error("IdentityFromToken accepted a non-JWT string")
	}
}
