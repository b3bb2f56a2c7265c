// service содержит бизнес-логику веб-приложения:
// регистрацию/аутентификацию пользователей, выпуск/проверку сессионных
// токенов и работу с хранилищем через интерфейсы из пакета storage.
//
// Основные аспекты:
//   - Пакет не хранит состояние запроса внутри Service; экземпляр Service
//     безопасен для конкурентного использования из разных горутин при условии,
//     что переданное хранилище (storage.Storage) потокобезопасно.
//   - Ошибки возвращаются и далее маппятся
//     транспортом на HTTP-коды (см. комментарии к переменным ошибок ниже).
package service

import (
	"errors"
	"time"

	"github.com/pribylovaa/go-webapp/internal/cache"
	"github.com/pribylovaa/go-webapp/internal/config"
	"github.com/pribylovaa/go-webapp/internal/storage"
)

var (
	// ErrInvalidCredentials — пара логин/пароль неверна или пользователь не найден.
	// Транспорт намеренно не различает эти случаи. HTTP 401.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotAuthenticated — сессионный токен отсутствует в хранилище
	// или срок сессии истёк. HTTP 401.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrUsernameTaken — имя пользователя уже занято. HTTP 409.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrInvalidUsername — имя пользователя не проходит политику валидации. HTTP 400.
	ErrInvalidUsername = errors.New("invalid username format")

	// ErrWeakPassword — пароль не удовлетворяет политикам сложности. HTTP 400.
	ErrWeakPassword = errors.New("password is too weak")

	// ErrEmptyPassword — пароль пустой. HTTP 400.
	ErrEmptyPassword = errors.New("password is empty")

	// ErrSessionCollision — исчерпаны попытки сгенерировать уникальный сессионный
	// токен (редкий случай коллизий хэша после нескольких ретраев). HTTP 500.
	ErrSessionCollision = errors.New("session token collision")
)

// Service описывает бизнес-логику веб-приложения.
type Service struct {
	storage storage.Storage
	cfg     config.AuthConfig
	scache  cache.SessionCache // может быть nil, если кэш не сконфигурирован
	now     func() time.Time   // подменяется в тестах
}

// New создаёт новый экземпляр Service.
func New(storage storage.Storage, cfg config.AuthConfig) *Service {
	return &Service{
		storage: storage,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetSessionCache устанавливает кэш сессий (опционально).
func (s *Service) SetSessionCache(c cache.SessionCache) {
	s.scache = c
}
