package httpapi

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-webapp/internal/config"
	"github.com/pribylovaa/go-webapp/internal/protocol"
	"github.com/pribylovaa/go-webapp/internal/service"
	"github.com/pribylovaa/go-webapp/internal/storage/memory"
)

func testAuthCfg() config.AuthConfig {
	return config.AuthConfig{
		SessionTTL:        time.Hour,
		SlidingExpiration: true,
		RefreshFactor:     0.8,
		SweepInterval:     10 * time.Minute,
	}
}

func newTestServer(t *testing.T, cfg config.AuthConfig) *httptest.Server {
	t.Helper()

	svc := service.New(memory.New(), cfg)
	srv := httptest.NewServer(NewRouter(svc, Options{
		Timeout:  5 * time.Second,
		BasePath: "/api/v1",
	}))
	t.Cleanup(srv.Close)

	return srv
}

// post отправляет закодированное сообщение и возвращает статус и сырое тело.
func post(t *testing.T, srv *httptest.Server, path string, msg protocol.Message) (int, []byte) {
	t.Helper()

	body, err := protocol.Encode(msg)
	require.NoError(t, err)

	return postRaw(t, srv, path, body)
}

func postRaw(t *testing.T, srv *httptest.Server, path string, body []byte) (int, []byte) {
	t.Helper()

	resp, err := http.Post(srv.URL+path, "application/cbor", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, raw
}

func register(t *testing.T, srv *httptest.Server, username, password string) *protocol.LoginResponse {
	t.Helper()

	status, raw := post(t, srv, "/api/v1/auth/register", &protocol.RegisterRequest{
		Username: username,
		Password: password,
	})
	require.Equal(t, http.StatusOK, status)

	out, err := protocol.DecodeExpect[*protocol.LoginResponse](raw)
	require.NoError(t, err)
	return out
}

func TestFlow_RegisterLoginWhoAmILogout(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, testAuthCfg())

	reg := register(t, srv, "alice", "Abcdef1!")
	require.NotEmpty(t, reg.Token)
	require.NotEmpty(t, reg.UserID)

	// Логин существующим пользователем даёт новую сессию.
	status, raw := post(t, srv, "/api/v1/auth/login", &protocol.LoginRequest{
		Username: "alice",
		Password: "Abcdef1!",
	})
	require.Equal(t, http.StatusOK, status)
	login, err := protocol.DecodeExpect[*protocol.LoginResponse](raw)
	require.NoError(t, err)
	require.Equal(t, reg.UserID, login.UserID)
	require.NotEqual(t, reg.Token, login.Token)

	// whoami по токену возвращает того же пользователя.
	status, raw = post(t, srv, "/api/v1/auth/whoami", &protocol.WhoAmIRequest{Token: login.Token})
	require.Equal(t, http.StatusOK, status)
	who, err := protocol.DecodeExpect[*protocol.WhoAmIResponse](raw)
	require.NoError(t, err)
	require.Equal(t, login.UserID, who.UserID)
	// Скользящий срок: продление не раньше исходного expires_at.
	require.GreaterOrEqual(t, who.ExpiresAt, login.ExpiresAt)

	// Логаут и повторный whoami тем же токеном.
	status, raw = post(t, srv, "/api/v1/auth/logout", &protocol.LogoutRequest{Token: login.Token})
	require.Equal(t, http.StatusOK, status)
	_, err = protocol.DecodeExpect[*protocol.LogoutResponse](raw)
	require.NoError(t, err)

	status, raw = post(t, srv, "/api/v1/auth/whoami", &protocol.WhoAmIRequest{Token: login.Token})
	require.Equal(t, http.StatusUnauthorized, status)
	er, err := protocol.DecodeExpect[*protocol.ErrorResponse](raw)
	require.NoError(t, err)
	require.Equal(t, protocol.CodeUnauthenticated, er.Code)
}

func TestLogin_UniformRejection_ByteIdentical(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, testAuthCfg())
	register(t, srv, "alice", "Abcdef1!")

	// Неизвестное имя.
	stGhost, rawGhost := post(t, srv, "/api/v1/auth/login", &protocol.LoginRequest{
		Username: "ghost",
		Password: "Abcdef1!",
	})
	// Известное имя, неверный пароль.
	stWrong, rawWrong := post(t, srv, "/api/v1/auth/login", &protocol.LoginRequest{
		Username: "alice",
		Password: "Wrong1!pw",
	})

	require.Equal(t, http.StatusUnauthorized, stGhost)
	require.Equal(t, http.StatusUnauthorized, stWrong)
	// Ответы совпадают байт в байт: канонический CBOR и единая точка формирования.
	require.Equal(t, rawGhost, rawWrong)

	er, err := protocol.DecodeExpect[*protocol.ErrorResponse](rawGhost)
	require.NoError(t, err)
	require.Equal(t, protocol.CodeUnauthenticated, er.Code)
	require.Equal(t, "wrong username or password", er.Message)
}

func TestRegister_DuplicateUsername_Conflict(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, testAuthCfg())
	register(t, srv, "alice", "Abcdef1!")

	status, raw := post(t, srv, "/api/v1/auth/register", &protocol.RegisterRequest{
		Username: "Alice", // нормализуется в то же имя
		Password: "Abcdef1!",
	})
	require.Equal(t, http.StatusConflict, status)

	er, err := protocol.DecodeExpect[*protocol.ErrorResponse](raw)
	require.NoError(t, err)
	require.Equal(t, protocol.CodeAlreadyExists, er.Code)
}

func TestRegister_InvalidArgument(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, testAuthCfg())

	status, raw := post(t, srv, "/api/v1/auth/register", &protocol.RegisterRequest{
		Username: "ab", // слишком короткое
		Password: "Abcdef1!",
	})
	require.Equal(t, http.StatusBadRequest, status)
	er, err := protocol.DecodeExpect[*protocol.ErrorResponse](raw)
	require.NoError(t, err)
	require.Equal(t, protocol.CodeInvalidArgument, er.Code)

	status, raw = post(t, srv, "/api/v1/auth/register", &protocol.RegisterRequest{
		Username: "bob",
		Password: "weak",
	})
	require.Equal(t, http.StatusBadRequest, status)
	er, err = protocol.DecodeExpect[*protocol.ErrorResponse](raw)
	require.NoError(t, err)
	require.Equal(t, protocol.CodeInvalidArgument, er.Code)
}

func TestLogout_Idempotent(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, testAuthCfg())
	reg := register(t, srv, "alice", "Abcdef1!")

	for i := 0; i < 2; i++ {
		status, _ := post(t, srv, "/api/v1/auth/logout", &protocol.LogoutRequest{Token: reg.Token})
		require.Equal(t, http.StatusOK, status)
	}

	// Логаут заведомо неизвестного токена — тоже успех.
	status, _ := post(t, srv, "/api/v1/auth/logout", &protocol.LogoutRequest{Token: "no-such-token"})
	require.Equal(t, http.StatusOK, status)
}

func TestMalformedBody_BadRequest(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, testAuthCfg())

	status, raw := postRaw(t, srv, "/api/v1/auth/login", []byte{0xde, 0xad, 0xbe, 0xef})
	require.Equal(t, http.StatusBadRequest, status)

	er, err := protocol.DecodeExpect[*protocol.ErrorResponse](raw)
	require.NoError(t, err)
	require.Equal(t, protocol.CodeBadRequest, er.Code)
}

func TestWrongMessageKind_BadRequest(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, testAuthCfg())

	// Корректное сообщение не того типа на эндпойнте логина.
	status, raw := post(t, srv, "/api/v1/auth/login", &protocol.LogoutRequest{Token: "tok"})
	require.Equal(t, http.StatusBadRequest, status)

	er, err := protocol.DecodeExpect[*protocol.ErrorResponse](raw)
	require.NoError(t, err)
	require.Equal(t, protocol.CodeBadRequest, er.Code)
}

func TestForeignSchemaVersion_BadRequest(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, testAuthCfg())

	inner, err := cbor.Marshal(map[string]string{"username": "alice", "password": "Abcdef1!"})
	require.NoError(t, err)

	// Конверт несовместимой версии схемы.
	body, err := cbor.Marshal(map[string]any{
		"v": 99,
		"t": "login_request",
		"b": cbor.RawMessage(inner),
	})
	require.NoError(t, err)

	status, raw := postRaw(t, srv, "/api/v1/auth/login", body)
	require.Equal(t, http.StatusBadRequest, status)

	er, err := protocol.DecodeExpect[*protocol.ErrorResponse](raw)
	require.NoError(t, err)
	require.Equal(t, protocol.CodeBadRequest, er.Code)
}

func TestUnsupportedMediaType(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, testAuthCfg())

	body, err := protocol.Encode(&protocol.LoginRequest{Username: "alice", Password: "Abcdef1!"})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestSessionCookie_SetAndCleared(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, testAuthCfg())

	body, err := protocol.Encode(&protocol.RegisterRequest{Username: "alice", Password: "Abcdef1!"})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/api/v1/auth/register", "application/cbor", bytes.NewReader(body))
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sessionCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "session" {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie)
	require.True(t, sessionCookie.HttpOnly)

	reg, err := protocol.DecodeExpect[*protocol.LoginResponse](raw)
	require.NoError(t, err)
	require.Equal(t, reg.Token, sessionCookie.Value)

	// Логаут стирает cookie.
	body, err = protocol.Encode(&protocol.LogoutRequest{Token: reg.Token})
	require.NoError(t, err)
	resp, err = http.Post(srv.URL+"/api/v1/auth/logout", "application/cbor", bytes.NewReader(body))
	require.NoError(t, err)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	var cleared *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "session" {
			cleared = c
		}
	}
	require.NotNil(t, cleared)
	require.Empty(t, cleared.Value)
	require.Negative(t, cleared.MaxAge)
}

func TestRequestID_Propagated(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, testAuthCfg())

	body, err := protocol.Encode(&protocol.LoginRequest{Username: "ghost", Password: "Abcdef1!"})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/auth/login", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/cbor")
	req.Header.Set("X-Request-Id", "test-rid-42")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	require.Equal(t, "test-rid-42", resp.Header.Get("X-Request-Id"))
}
