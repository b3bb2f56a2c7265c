package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/go-webapp/internal/models"
	"github.com/pribylovaa/go-webapp/internal/storage"
)

// SaveSession сохраняет новую сессию в БД.
func (s *Storage) SaveSession(ctx context.Context, session *models.Session) error {
	const op = "storage.postgres.SaveSession"

	query := `
        INSERT INTO sessions(token_hash, user_id, created_at, expires_at)
        VALUES ($1, $2, $3, $4)
    `

	_, err := s.db.Exec(ctx, query,
		session.TokenHash,
		session.UserID,
		session.CreatedAt,
		session.ExpiresAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// SessionByHash находит сессию по хэшу токена.
func (s *Storage) SessionByHash(ctx context.Context, hash string) (*models.Session, error) {
	const op = "storage.postgres.SessionByHash"

	query := `
        SELECT token_hash, user_id, created_at, expires_at
        FROM sessions
        WHERE token_hash = $1
    `

	var session models.Session
	err := s.db.QueryRow(ctx, query, hash).Scan(
		&session.TokenHash,
		&session.UserID,
		&session.CreatedAt,
		&session.ExpiresAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &session, nil
}

// ExtendSession атомарно продлевает живую сессию до expiresAt.
//
// Гарантии в одном UPDATE:
//   - продлеваются только непросроченные на момент now записи — просроченная,
//     но ещё не вычищенная сессия эквивалентна отсутствующей;
//   - GREATEST не даёт уменьшить expires_at конкурентным вызовом;
//   - удалённую сессию продление не воскресит (нет строки — нет апдейта).
func (s *Storage) ExtendSession(ctx context.Context, hash string, expiresAt, now time.Time) (*models.Session, error) {
	const op = "storage.postgres.ExtendSession"

	query := `
        UPDATE sessions
        SET expires_at = GREATEST(expires_at, $2)
        WHERE token_hash = $1 AND expires_at > $3
        RETURNING token_hash, user_id, created_at, expires_at
    `

	var session models.Session
	err := s.db.QueryRow(ctx, query, hash, expiresAt, now).Scan(
		&session.TokenHash,
		&session.UserID,
		&session.CreatedAt,
		&session.ExpiresAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &session, nil
}

// DeleteSession удаляет сессию. Идемпотентно: отсутствие строки — не ошибка.
func (s *Storage) DeleteSession(ctx context.Context, hash string) error {
	const op = "storage.postgres.DeleteSession"

	query := `
        DELETE FROM sessions
        WHERE token_hash = $1
    `

	if _, err := s.db.Exec(ctx, query, hash); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// DeleteExpiredSessions удаляет все просроченные сессии.
func (s *Storage) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.postgres.DeleteExpiredSessions"

	query := `
        DELETE FROM sessions
        WHERE expires_at <= $1
    `

	cmdTag, err := s.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return cmdTag.RowsAffected(), nil
}
