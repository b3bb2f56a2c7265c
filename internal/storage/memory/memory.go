// memory — встроенная реализация storage.Storage поверх шардированных
// map с внутренней синхронизацией. Используется в режиме разработки
// (пустой db_url) и в end-to-end тестах HTTP-слоя, где поднимать
// PostgreSQL избыточно.
//
// Гарантии совпадают с postgres-реализацией: мутации по одному
// token-hash атомарны (check-and-set под мьютексом шарда), чтения видят
// только целиком записанные значения, удалённую сессию нельзя
// "воскресить" конкурентным продлением.
package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-webapp/internal/models"
	"github.com/pribylovaa/go-webapp/internal/storage"
)

// Число шардов сессий. Отдельные токены независимы, поэтому глобальный
// лок на все сессии не нужен: конкурирующие операции по разным токенам
// почти всегда попадают в разные шарды.
const sessionShards = 16

type sessionShard struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
}

type Storage struct {
	usersMu     sync.RWMutex
	usersByName map[string]models.User
	usersByID   map[uuid.UUID]string

	shards [sessionShards]sessionShard
}

// New создает пустое in-memory хранилище.
func New() *Storage {
	s := &Storage{
		usersByName: make(map[string]models.User),
		usersByID:   make(map[uuid.UUID]string),
	}

	for i := range s.shards {
		s.shards[i].sessions = make(map[string]models.Session)
	}

	return s
}

// Close освобождает ресурсы; для in-memory реализации — no-op.
func (s *Storage) Close() {}

// Проверка на соответствие интерфейсу Storage.
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) shard(hash string) *sessionShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(hash))
	return &s.shards[h.Sum32()%sessionShards]
}

// SaveUser создает нового пользователя.
func (s *Storage) SaveUser(ctx context.Context, user *models.User) error {
	const op = "storage.memory.SaveUser"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	if _, ok := s.usersByName[user.Username]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}
	if _, ok := s.usersByID[user.ID]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}

	s.usersByName[user.Username] = *user
	s.usersByID[user.ID] = user.Username

	return nil
}

// UserByUsername находит пользователя по имени.
func (s *Storage) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	const op = "storage.memory.UserByUsername"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.usersMu.RLock()
	defer s.usersMu.RUnlock()

	user, ok := s.usersByName[username]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return &user, nil
}

// UserByID находит пользователя по ID.
func (s *Storage) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "storage.memory.UserByID"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.usersMu.RLock()
	defer s.usersMu.RUnlock()

	username, ok := s.usersByID[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	user := s.usersByName[username]
	return &user, nil
}

// SaveSession сохраняет новую сессию.
func (s *Storage) SaveSession(ctx context.Context, session *models.Session) error {
	const op = "storage.memory.SaveSession"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	sh := s.shard(session.TokenHash)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, ok := sh.sessions[session.TokenHash]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}

	sh.sessions[session.TokenHash] = *session

	return nil
}

// SessionByHash находит сессию по хэшу токена.
func (s *Storage) SessionByHash(ctx context.Context, hash string) (*models.Session, error) {
	const op = "storage.memory.SessionByHash"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sh := s.shard(hash)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	session, ok := sh.sessions[hash]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return &session, nil
}

// ExtendSession атомарно продлевает живую сессию.
func (s *Storage) ExtendSession(ctx context.Context, hash string, expiresAt, now time.Time) (*models.Session, error) {
	const op = "storage.memory.ExtendSession"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sh := s.shard(hash)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	session, ok := sh.sessions[hash]
	if !ok || session.Expired(now) {
		// Просроченная, но ещё не вычищенная запись эквивалентна отсутствующей.
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	// Монотонность: срок никогда не уменьшается.
	if expiresAt.After(session.ExpiresAt) {
		session.ExpiresAt = expiresAt
		sh.sessions[hash] = session
	}

	return &session, nil
}

// DeleteSession удаляет сессию; отсутствие записи — не ошибка.
func (s *Storage) DeleteSession(ctx context.Context, hash string) error {
	const op = "storage.memory.DeleteSession"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	sh := s.shard(hash)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	delete(sh.sessions, hash)

	return nil
}

// DeleteExpiredSessions удаляет все просроченные сессии.
func (s *Storage) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.memory.DeleteExpiredSessions"

	var removed int64

	for i := range s.shards {
		if err := ctx.Err(); err != nil {
			return removed, fmt.Errorf("%s: %w", op, err)
		}

		sh := &s.shards[i]
		sh.mu.Lock()
		for hash, session := range sh.sessions {
			if session.Expired(now) {
				delete(sh.sessions, hash)
				removed++
			}
		}
		sh.mu.Unlock()
	}

	return removed, nil
}
