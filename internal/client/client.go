// client — клиентская сторона протокола: HTTP-клиент CBOR-сообщений,
// таймер фонового продления сессии и файловое хранилище токена.
//
// Сервер — единственный источник истины о сессии: клиент лишь кэширует
// токен и срок и заранее продлевает сессию, пока пользователь активен.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pribylovaa/go-webapp/internal/protocol"
)

const contentTypeCBOR = "application/cbor"

// maxResponseBytes ограничивает размер ответа сервера.
const maxResponseBytes = 64 << 10

// APIError — ошибка, возвращённая сервером в ErrorResponse.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error: http %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsUnauthenticated сообщает, отверг ли сервер токен/учётные данные.
func IsUnauthenticated(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Code == protocol.CodeUnauthenticated
}

// Client — клиент протокола поверх HTTP.
type Client struct {
	baseURL string
	hc      *http.Client
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient подменяет http.Client (например, для тестов).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// New создает клиента протокола. baseURL — корень API,
// например "http://localhost:8080/api/v1".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: 10 * time.Second},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Login выполняет вход и возвращает свежую сессию.
func (c *Client) Login(ctx context.Context, username, password string) (*protocol.LoginResponse, error) {
	const op = "client.Login"

	out, err := do[*protocol.LoginResponse](ctx, c, "/auth/login", &protocol.LoginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// Register регистрирует пользователя и возвращает открытую сессию.
func (c *Client) Register(ctx context.Context, username, password string) (*protocol.LoginResponse, error) {
	const op = "client.Register"

	out, err := do[*protocol.LoginResponse](ctx, c, "/auth/register", &protocol.RegisterRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// WhoAmI проверяет сессию на сервере; при включённом на сервере
// скользящем сроке — заодно продлевает её.
func (c *Client) WhoAmI(ctx context.Context, token string) (*protocol.WhoAmIResponse, error) {
	const op = "client.WhoAmI"

	out, err := do[*protocol.WhoAmIResponse](ctx, c, "/auth/whoami", &protocol.WhoAmIRequest{Token: token})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// Logout завершает сессию. Неизвестный токен не является ошибкой.
func (c *Client) Logout(ctx context.Context, token string) error {
	const op = "client.Logout"

	if _, err := do[*protocol.LogoutResponse](ctx, c, "/auth/logout", &protocol.LogoutRequest{Token: token}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// do кодирует запрос, выполняет POST и декодирует ответ ожидаемого типа.
// Не-2xx со валидным ErrorResponse превращается в *APIError.
func do[M protocol.Message](ctx context.Context, c *Client, path string, msg protocol.Message) (M, error) {
	var zero M

	body, err := protocol.Encode(msg)
	if err != nil {
		return zero, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return zero, err
	}
	req.Header.Set("Content-Type", contentTypeCBOR)

	resp, err := c.hc.Do(req)
	if err != nil {
		return zero, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return zero, err
	}

	if resp.StatusCode != http.StatusOK {
		if er, derr := protocol.DecodeExpect[*protocol.ErrorResponse](raw); derr == nil {
			return zero, &APIError{StatusCode: resp.StatusCode, Code: er.Code, Message: er.Message}
		}

		return zero, fmt.Errorf("unexpected http status %d", resp.StatusCode)
	}

	return protocol.DecodeExpect[M](raw)
}
