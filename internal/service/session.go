package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-webapp/internal/cache"
	"github.com/pribylovaa/go-webapp/internal/models"
	"github.com/pribylovaa/go-webapp/internal/pkg/log"
	"github.com/pribylovaa/go-webapp/internal/storage"
)

// HashToken возвращает хэш сессионного токена в том виде, в котором он
// хранится в базе: sha256 от исходной строки в base64url без паддинга.
// Сам токен на сервере не сохраняется нигде.
func HashToken(plain string) string {
	hashBytes := sha256.Sum256([]byte(plain))
	return base64.RawURLEncoding.EncodeToString(hashBytes[:])
}

// openSession создаёт новую сессию для пользователя и возвращает
// исходный (нехэшированный) токен.
func (s *Service) openSession(ctx context.Context, userID uuid.UUID) (*models.SessionToken, error) {
	const (
		op          = "service.session.openSession"
		maxAttempts = 5
	)

	lg := log.From(ctx)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			lg.Error("session_rand_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		plain := base64.RawURLEncoding.EncodeToString(b)
		hash := HashToken(plain)

		now := s.now()
		session := &models.Session{
			TokenHash: hash,
			UserID:    userID,
			CreatedAt: now,
			ExpiresAt: now.Add(s.cfg.SessionTTL),
		}

		if err := s.storage.SaveSession(ctx, session); err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				// Редкая коллизия — пробуем сгенерировать заново.
				continue
			}

			lg.Error("save_session_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		s.cacheSet(ctx, hash, session)

		return &models.SessionToken{
			Token:     plain,
			UserID:    userID,
			ExpiresAt: session.ExpiresAt,
		}, nil
	}

	lg.Error("session_collision_exceeded",
		slog.String("op", op),
	)

	return nil, fmt.Errorf("%s: %w", op, ErrSessionCollision)
}

// WhoAmI проверяет сессионный токен и возвращает данные сессии.
//
// При включённом скользящем сроке (SlidingExpiration) каждая успешная
// проверка атомарно продлевает сессию на полный SessionTTL от текущего
// момента; истёкшая или отсутствующая сессия даёт ErrNotAuthenticated
// без различия причин.
func (s *Service) WhoAmI(ctx context.Context, token string) (*models.SessionInfo, error) {
	const op = "service.session.WhoAmI"

	hash := HashToken(token)
	now := s.now()

	if s.cfg.SlidingExpiration {
		session, err := s.storage.ExtendSession(ctx, hash, now.Add(s.cfg.SessionTTL), now)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				s.cacheDelete(ctx, hash)
				return nil, fmt.Errorf("%s: %w", op, ErrNotAuthenticated)
			}

			return nil, fmt.Errorf("%s: %w", op, err)
		}

		s.cacheSet(ctx, hash, session)

		return &models.SessionInfo{
			UserID:    session.UserID,
			ExpiresAt: session.ExpiresAt,
		}, nil
	}

	if s.scache != nil {
		entry, ok, err := s.scache.Get(ctx, hash)
		if err != nil {
			log.From(ctx).Warn("session_cache_get_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		} else if ok && entry.ExpiresAt.After(now) {
			return &models.SessionInfo{
				UserID:    entry.UserID,
				ExpiresAt: entry.ExpiresAt,
			}, nil
		}
	}

	session, err := s.storage.SessionByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotAuthenticated)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if session.Expired(now) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotAuthenticated)
	}

	s.cacheSet(ctx, hash, session)

	return &models.SessionInfo{
		UserID:    session.UserID,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// Logout завершает сессию по токену. Операция идемпотентна:
// повторный выход и выход по неизвестному токену не являются ошибкой.
func (s *Service) Logout(ctx context.Context, token string) error {
	const op = "service.session.Logout"

	hash := HashToken(token)

	if err := s.storage.DeleteSession(ctx, hash); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.cacheDelete(ctx, hash)

	return nil
}

// SweepExpiredSessions удаляет истёкшие сессии из хранилища и возвращает
// количество удалённых записей. Вызывается фоновым джанитором сервера.
func (s *Service) SweepExpiredSessions(ctx context.Context) (int64, error) {
	const op = "service.session.SweepExpiredSessions"

	removed, err := s.storage.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return removed, nil
}

// cacheSet кладёт сессию в кэш (best effort).
func (s *Service) cacheSet(ctx context.Context, hash string, session *models.Session) {
	if s.scache == nil {
		return
	}

	entry := cache.SessionEntry{
		UserID:    session.UserID,
		ExpiresAt: session.ExpiresAt,
	}

	if err := s.scache.Set(ctx, hash, &entry, session.ExpiresAt.Sub(s.now())); err != nil {
		log.From(ctx).Warn("session_cache_set_failed",
			slog.String("err", err.Error()),
		)
	}
}

// cacheDelete убирает сессию из кэша (best effort).
func (s *Service) cacheDelete(ctx context.Context, hash string) {
	if s.scache == nil {
		return
	}

	if err := s.scache.Delete(ctx, hash); err != nil {
		log.From(ctx).Warn("session_cache_delete_failed",
			slog.String("err", err.Error()),
		)
	}
}
