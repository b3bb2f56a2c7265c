package client

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/pribylovaa/go-webapp/internal/protocol"
)

// TokenStore сохраняет сессию между запусками клиента в файле
// с правами 0600. Истёкшая запись при загрузке игнорируется.
type TokenStore struct {
	path string
}

// storedSession — дисковый формат записи.
type storedSession struct {
	UserID    string `cbor:"user_id"`
	Token     string `cbor:"token"`
	ExpiresAt int64  `cbor:"expires_at"`
}

// NewTokenStore создает хранилище по указанному пути.
func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

// Save записывает сессию на диск.
func (s *TokenStore) Save(sess *protocol.LoginResponse) error {
	const op = "client.store.Save"

	data, err := cbor.Marshal(storedSession{
		UserID:    sess.UserID,
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Load читает сохранённую сессию. Возвращает (nil, false, nil), если файла
// нет, запись повреждена или срок уже истёк.
func (s *TokenStore) Load() (*protocol.LoginResponse, bool, error) {
	const op = "client.store.Load"

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	var rec storedSession
	if err := cbor.Unmarshal(data, &rec); err != nil || rec.Token == "" {
		// Повреждённый файл — не повод ломать запуск клиента.
		return nil, false, nil
	}

	if !time.Unix(rec.ExpiresAt, 0).After(time.Now()) {
		return nil, false, nil
	}

	return &protocol.LoginResponse{
		UserID:    rec.UserID,
		Token:     rec.Token,
		ExpiresAt: rec.ExpiresAt,
	}, true, nil
}

// Clear удаляет запись. Отсутствие файла — не ошибка.
func (s *TokenStore) Clear() error {
	const op = "client.store.Clear"

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
