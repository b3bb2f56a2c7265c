package client

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TTL в таймерных тестах кратен секундам: expires_at ходит по проводу
// в unix-секундах, и субсекундные сроки теряются при усечении.

func TestSessionTimer_RefreshesBeforeExpiry(t *testing.T) {
	t.Parallel()

	// Без продлений сессия умерла бы за 2 секунды.
	c := newEnv(t, 2*time.Second)

	tm := NewSessionTimer(c, 0.25)
	t.Cleanup(tm.Stop)

	require.NoError(t, tm.Register(context.Background(), "alice", "Abcdef1!"))
	first := tm.Status()
	require.Equal(t, StateActive, first.State)

	// Спустя полтора исходных TTL сессия всё ещё жива — таймер продлевал.
	time.Sleep(3 * time.Second)

	st := tm.Status()
	require.Equal(t, StateActive, st.State)
	require.True(t, st.ExpiresAt.After(first.ExpiresAt))

	// И сервер о ней по-прежнему знает.
	who, err := c.WhoAmI(context.Background(), st.Token)
	require.NoError(t, err)
	require.Equal(t, first.UserID, who.UserID)
}

func TestSessionTimer_ServerRevocation_DropsToAnonymous(t *testing.T) {
	t.Parallel()

	c := newEnv(t, 3*time.Second)

	tm := NewSessionTimer(c, 0.2)
	t.Cleanup(tm.Stop)

	require.NoError(t, tm.Register(context.Background(), "alice", "Abcdef1!"))
	st := tm.Status()

	// Сессию завершают в обход таймера (другая вкладка, админ и т.п.).
	require.NoError(t, c.Logout(context.Background(), st.Token))

	// Очередное продление получает отказ, и таймер сбрасывает состояние.
	require.Eventually(t, func() bool {
		return tm.Status().State == StateAnonymous
	}, 3*time.Second, 20*time.Millisecond)
}

func TestSessionTimer_TransportFailure_DropsImmediately(t *testing.T) {
	t.Parallel()

	c, srv := newEnvServer(t, 10*time.Second)

	tm := NewSessionTimer(c, 0.1)
	t.Cleanup(tm.Stop)

	require.NoError(t, tm.Register(context.Background(), "alice", "Abcdef1!"))
	st := tm.Status()
	require.Equal(t, StateActive, st.State)

	// Сервер стал недоступен: первое же неудачное продление сбрасывает
	// состояние, не дожидаясь локального дедлайна expires_at.
	srv.Close()

	require.Eventually(t, func() bool {
		return tm.Status().State == StateAnonymous
	}, 5*time.Second, 20*time.Millisecond)
	require.True(t, time.Now().Before(st.ExpiresAt),
		"переход должен случиться задолго до местного срока истечения")
}

func TestSessionTimer_Drop_ClearsTokenStore(t *testing.T) {
	t.Parallel()

	c := newEnv(t, 3*time.Second)

	store := NewTokenStore(filepath.Join(t.TempDir(), "session"))

	tm := NewSessionTimer(c, 0.2)
	t.Cleanup(tm.Stop)
	tm.OnDrop(func() { _ = store.Clear() })

	ctx := context.Background()
	sess, err := c.Register(ctx, "alice", "Abcdef1!")
	require.NoError(t, err)
	require.NoError(t, store.Save(sess))
	tm.Adopt(sess)

	// Логаут «из другой вкладки» отзывает токен на сервере.
	require.NoError(t, c.Logout(ctx, sess.Token))

	require.Eventually(t, func() bool {
		return tm.Status().State == StateAnonymous
	}, 3*time.Second, 20*time.Millisecond)

	// Отозванный токен не остаётся на диске и не будет принят при рестарте.
	_, ok, err := store.Load()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSessionTimer_LoginRejected_StaysAnonymous(t *testing.T) {
	t.Parallel()

	c := newEnv(t, time.Hour)

	tm := NewSessionTimer(c, 0.8)
	t.Cleanup(tm.Stop)

	err := tm.Login(context.Background(), "nobody", "Abcdef1!")
	require.Error(t, err)
	require.True(t, IsUnauthenticated(err))
	require.Equal(t, StateAnonymous, tm.Status().State)
}

func TestSessionTimer_LoginLogoutFlow(t *testing.T) {
	t.Parallel()

	c := newEnv(t, time.Hour)

	tm := NewSessionTimer(c, 0.8)
	t.Cleanup(tm.Stop)

	ctx := context.Background()
	_, err := c.Register(ctx, "alice", "Abcdef1!")
	require.NoError(t, err)

	require.NoError(t, tm.Login(ctx, "alice", "Abcdef1!"))
	st := tm.Status()
	require.Equal(t, StateActive, st.State)
	require.NotEmpty(t, st.Token)

	require.NoError(t, tm.Logout(ctx))
	require.Equal(t, StateAnonymous, tm.Status().State)

	// Повторный логаут — no-op.
	require.NoError(t, tm.Logout(ctx))

	// Токен на сервере уже недействителен.
	_, err = c.WhoAmI(ctx, st.Token)
	require.True(t, IsUnauthenticated(err))
}

func TestSessionTimer_AdoptExpiredSession_Anonymous(t *testing.T) {
	t.Parallel()

	c := newEnv(t, time.Hour)

	tm := NewSessionTimer(c, 0.8)
	t.Cleanup(tm.Stop)

	ctx := context.Background()
	reg, err := c.Register(ctx, "alice", "Abcdef1!")
	require.NoError(t, err)

	// Протухшая запись (например, из старого файла) не оживает.
	reg.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	tm.Adopt(reg)

	require.Equal(t, StateAnonymous, tm.Status().State)
}
