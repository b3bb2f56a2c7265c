package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-webapp/internal/models"
	"github.com/pribylovaa/go-webapp/internal/storage"
)

func applySessionMigration(t *testing.T, st *Storage) {
	t.Helper()
	_, err := st.db.Exec(context.Background(), readMigration(t, "2_init_sessions.up.sql"))
	require.NoError(t, err, "apply 2_init_sessions.up.sql")
}

// seedUser создаёт пользователя.
func seedUser(t *testing.T, st *Storage, username string) uuid.UUID {
	t.Helper()
	now := time.Now().UTC()
	u := &models.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, st.SaveUser(context.Background(), u))
	return u.ID
}

func TestIntegration_SaveSession_And_GetByHash_OK(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()
	applySessionMigration(t, st)

	ctx := context.Background()
	userID := seedUser(t, st, "user1")

	now := time.Now().UTC()
	s := &models.Session{
		TokenHash: "hash-1",
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}

	require.NoError(t, st.SaveSession(ctx, s))
	got, err := st.SessionByHash(ctx, "hash-1")
	require.NoError(t, err)

	require.Equal(t, "hash-1", got.TokenHash)
	require.Equal(t, userID, got.UserID)
	require.WithinDuration(t, now, got.CreatedAt, 2*time.Second)
	require.WithinDuration(t, now.Add(time.Hour), got.ExpiresAt, 2*time.Second)
}

func TestIntegration_SaveSession_UniqueViolation(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()
	applySessionMigration(t, st)

	ctx := context.Background()
	userID := seedUser(t, st, "user1")
	now := time.Now().UTC()

	s1 := &models.Session{TokenHash: "dup-hash", UserID: userID, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, st.SaveSession(ctx, s1))

	// Повтор с тем же token_hash.
	s2 := &models.Session{TokenHash: "dup-hash", UserID: userID, CreatedAt: now, ExpiresAt: now.Add(2 * time.Hour)}
	err := st.SaveSession(ctx, s2)
	require.Error(t, err)
	require.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestIntegration_ExtendSession_OK_And_Monotonic(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()
	applySessionMigration(t, st)

	ctx := context.Background()
	userID := seedUser(t, st, "user1")
	now := time.Now().UTC()

	s := &models.Session{TokenHash: "h", UserID: userID, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, st.SaveSession(ctx, s))

	// Продление вперёд.
	got, err := st.ExtendSession(ctx, "h", now.Add(2*time.Hour), now)
	require.NoError(t, err)
	require.WithinDuration(t, now.Add(2*time.Hour), got.ExpiresAt, 2*time.Second)

	// "Продление" назад срок не уменьшает (GREATEST).
	got, err = st.ExtendSession(ctx, "h", now.Add(30*time.Minute), now)
	require.NoError(t, err)
	require.WithinDuration(t, now.Add(2*time.Hour), got.ExpiresAt, 2*time.Second)
}

func TestIntegration_ExtendSession_ExpiredOrAbsent(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()
	applySessionMigration(t, st)

	ctx := context.Background()
	userID := seedUser(t, st, "user1")
	now := time.Now().UTC()

	// Просроченная, но не вычищенная запись.
	s := &models.Session{TokenHash: "expired", UserID: userID, CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
	require.NoError(t, st.SaveSession(ctx, s))

	_, err := st.ExtendSession(ctx, "expired", now.Add(time.Hour), now)
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = st.ExtendSession(ctx, "never-existed", now.Add(time.Hour), now)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIntegration_DeleteSession_Idempotent(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()
	applySessionMigration(t, st)

	ctx := context.Background()
	userID := seedUser(t, st, "user1")
	now := time.Now().UTC()

	s := &models.Session{TokenHash: "h", UserID: userID, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, st.SaveSession(ctx, s))

	require.NoError(t, st.DeleteSession(ctx, "h"))
	require.NoError(t, st.DeleteSession(ctx, "h"))
	require.NoError(t, st.DeleteSession(ctx, "never-existed"))

	_, err := st.SessionByHash(ctx, "h")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIntegration_DeleteExpiredSessions(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()
	applySessionMigration(t, st)

	ctx := context.Background()
	userID := seedUser(t, st, "user1")
	now := time.Now().UTC()

	live := &models.Session{TokenHash: "live", UserID: userID, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	dead := &models.Session{TokenHash: "dead", UserID: userID, CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Minute)}
	require.NoError(t, st.SaveSession(ctx, live))
	require.NoError(t, st.SaveSession(ctx, dead))

	removed, err := st.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	_, err = st.SessionByHash(ctx, "dead")
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = st.SessionByHash(ctx, "live")
	require.NoError(t, err)
}
