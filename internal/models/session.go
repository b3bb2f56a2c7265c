package models

import (
	"time"

	"github.com/google/uuid"
)

// Session - серверная запись сессии.
//
// Описание:
//   - TokenHash — sha256-хэш сессионного токена (base64url); сам токен
//     в БД не хранится, клиент предъявляет его в открытом виде;
//   - ExpiresAt — момент истечения сессии (UTC); запись с ExpiresAt <= now
//     считается отсутствующей независимо от фоновой очистки.
type Session struct {
	TokenHash string
	UserID    uuid.UUID
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired сообщает, истекла ли сессия на момент now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// SessionToken — результат успешного логина, выдаваемый клиенту.
//
// Token — случайный секрет (32 байта crypto/rand, base64url); на сервере
// хранится только его хэш.
type SessionToken struct {
	Token     string
	UserID    uuid.UUID
	ExpiresAt time.Time
}

// SessionInfo — результат проверки сессии (whoami).
type SessionInfo struct {
	UserID    uuid.UUID
	ExpiresAt time.Time
}
