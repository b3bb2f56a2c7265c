package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pribylovaa/go-webapp/internal/models"
	"github.com/pribylovaa/go-webapp/internal/pkg/log"
	"github.com/pribylovaa/go-webapp/internal/pkg/redact"
	"github.com/pribylovaa/go-webapp/internal/storage"
)

// dummyPasswordHash — валидный bcrypt-хэш, против которого выполняется
// сравнение при логине несуществующего пользователя: время ответа
// не должно выдавать, существует ли имя в базе.
const dummyPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

var usernameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{2,31}$`)

// Register регистрирует нового пользователя и сразу открывает сессию.
func (s *Service) Register(ctx context.Context, username, password string) (*models.SessionToken, error) {
	const op = "service.auth.Register"

	normUsername, err := validateUsername(username)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := validatePassword(password); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.storage.UserByUsername(ctx, normUsername)
	if err == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrUsernameTaken)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hashedPassword, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	user := &models.User{
		ID:           uuid.New(),
		Username:     normUsername,
		PasswordHash: hashedPassword,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, fmt.Errorf("%s: %w", op, ErrUsernameTaken)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Имя в логах только в усечённом виде; пароль — никогда.
	log.From(ctx).Info("user_registered",
		slog.String("op", op),
		slog.String("username", redact.Username(normUsername)),
		slog.String("user_id", user.ID.String()),
	)

	return s.openSession(ctx, user.ID)
}

// Login выполняет вход по имени пользователя и паролю.
//
// Любая причина отказа (нет такого пользователя, неверный пароль,
// некорректное имя) сворачивается в ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (*models.SessionToken, error) {
	const op = "service.auth.Login"

	normUsername, err := validateUsername(username)
	if err != nil {
		// Сравнение с фиктивным хэшем выравнивает время ответа.
		checkPassword(dummyPasswordHash, password)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if len(password) == 0 {
		checkPassword(dummyPasswordHash, password)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	user, err := s.storage.UserByUsername(ctx, normUsername)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			checkPassword(dummyPasswordHash, password)
			log.From(ctx).Warn("login_rejected",
				slog.String("op", op),
				slog.String("username", redact.Username(normUsername)),
			)
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !checkPassword(user.PasswordHash, password) {
		log.From(ctx).Warn("login_rejected",
			slog.String("op", op),
			slog.String("username", redact.Username(normUsername)),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	return s.openSession(ctx, user.ID)
}

// hashPassword хэширует пароль с помощью bcrypt.
func hashPassword(password string) (string, error) {
	const op = "service.auth.hashPassword"

	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(bytes), nil
}

// checkPassword сравнивает пароль с хэшем.
func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// validateUsername проверяет формат имени пользователя и приводит его
// к нижнему регистру. Допустимы 3–32 символа [a-z0-9_.-], первый —
// буква или цифра.
func validateUsername(raw string) (string, error) {
	const op = "service.auth.validateUsername"

	username := strings.ToLower(strings.TrimSpace(raw))
	if !usernameRe.MatchString(username) {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidUsername)
	}

	return username, nil
}

// validatePassword проверяет минимальные требования к паролю.
// Политика по умолчанию: длина >= 8, хотя бы одна строчная, заглавная, цифра и спецсимвол.
func validatePassword(pw string) error {
	const op = "service.auth.validatePassword"

	if len(pw) == 0 {
		return fmt.Errorf("%s: %w", op, ErrEmptyPassword)
	}

	if len([]rune(pw)) < 8 {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !hasLower || !hasUpper || !hasDigit || !hasSpecial {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	return nil
}
