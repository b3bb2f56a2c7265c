package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-webapp/internal/models"
)

var (
	// ErrNotFound — запись не найдена (пользователь/сессия).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (username/token-hash).
	ErrAlreadyExists = errors.New("already exists")
)

// UserStorage выполняет операции над пользователями.
type UserStorage interface {
	// SaveUser создает нового пользователя.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByUsername находит пользователя по имени.
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// SessionStorage выполняет операции над сессиями. Хранилище — единственный
// владелец состояния сессий; все мутации по одному token-hash атомарны
// относительно конкурентных вызовов.
type SessionStorage interface {
	// SaveSession сохраняет новую сессию. Повтор token-hash -> ErrAlreadyExists.
	SaveSession(ctx context.Context, session *models.Session) error
	// SessionByHash находит сессию по хэшу токена. Отсутствие -> ErrNotFound;
	// проверка истечения остаётся на вызывающем.
	SessionByHash(ctx context.Context, hash string) (*models.Session, error)
	// ExtendSession атомарно продлевает живую (expires_at > now) сессию
	// до expiresAt, никогда не уменьшая срок. Отсутствие или истечение -> ErrNotFound.
	ExtendSession(ctx context.Context, hash string, expiresAt, now time.Time) (*models.Session, error)
	// DeleteSession удаляет сессию. Идемпотентно: отсутствие записи — не ошибка.
	DeleteSession(ctx context.Context, hash string) error
	// DeleteExpiredSessions удаляет все просроченные сессии, возвращает число удалённых.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Storage задает контракт работы с БД.
type Storage interface {
	UserStorage
	SessionStorage
	Close()
}
