package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-webapp/internal/config"
	"github.com/pribylovaa/go-webapp/internal/service"
	"github.com/pribylovaa/go-webapp/internal/storage/memory"
	"github.com/pribylovaa/go-webapp/internal/transport/httpapi"
)

// newEnvServer поднимает настоящий сервер поверх in-memory хранилища
// и возвращает клиента вместе с самим сервером (для тестов, которым
// нужно «уронить» транспорт).
func newEnvServer(t *testing.T, ttl time.Duration) (*Client, *httptest.Server) {
	t.Helper()

	svc := service.New(memory.New(), config.AuthConfig{
		SessionTTL:        ttl,
		SlidingExpiration: true,
		RefreshFactor:     0.8,
		SweepInterval:     time.Minute,
	})

	srv := httptest.NewServer(httpapi.NewRouter(svc, httpapi.Options{
		Timeout:  5 * time.Second,
		BasePath: "/api/v1",
	}))
	t.Cleanup(srv.Close)

	return New(srv.URL + "/api/v1"), srv
}

func newEnv(t *testing.T, ttl time.Duration) *Client {
	t.Helper()

	c, _ := newEnvServer(t, ttl)
	return c
}

func TestClient_FullFlow(t *testing.T) {
	t.Parallel()

	c := newEnv(t, time.Hour)
	ctx := context.Background()

	reg, err := c.Register(ctx, "alice", "Abcdef1!")
	require.NoError(t, err)
	require.NotEmpty(t, reg.Token)

	login, err := c.Login(ctx, "alice", "Abcdef1!")
	require.NoError(t, err)
	require.Equal(t, reg.UserID, login.UserID)

	who, err := c.WhoAmI(ctx, login.Token)
	require.NoError(t, err)
	require.Equal(t, login.UserID, who.UserID)

	require.NoError(t, c.Logout(ctx, login.Token))

	_, err = c.WhoAmI(ctx, login.Token)
	require.Error(t, err)
	require.True(t, IsUnauthenticated(err))
}

func TestClient_Login_Rejected(t *testing.T) {
	t.Parallel()

	c := newEnv(t, time.Hour)
	ctx := context.Background()

	_, err := c.Login(ctx, "ghost", "Abcdef1!")
	require.Error(t, err)
	require.True(t, IsUnauthenticated(err))

	var ae *APIError
	require.ErrorAs(t, err, &ae)
	require.Equal(t, 401, ae.StatusCode)
	require.Equal(t, "wrong username or password", ae.Message)
}

func TestClient_Register_Conflict(t *testing.T) {
	t.Parallel()

	c := newEnv(t, time.Hour)
	ctx := context.Background()

	_, err := c.Register(ctx, "alice", "Abcdef1!")
	require.NoError(t, err)

	_, err = c.Register(ctx, "alice", "Abcdef1!")
	require.Error(t, err)

	var ae *APIError
	require.ErrorAs(t, err, &ae)
	require.Equal(t, 409, ae.StatusCode)
}

func TestClient_Logout_UnknownToken_OK(t *testing.T) {
	t.Parallel()

	c := newEnv(t, time.Hour)
	require.NoError(t, c.Logout(context.Background(), "no-such-token"))
}
