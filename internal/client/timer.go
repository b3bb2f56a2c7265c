package client

import (
	"context"
	"sync"
	"time"

	"github.com/pribylovaa/go-webapp/internal/protocol"
)

// State — состояние клиентской сессии.
type State int

const (
	// StateAnonymous — активной сессии нет.
	StateAnonymous State = iota
	// StateActive — сессия открыта и поддерживается таймером.
	StateActive
)

// Status — снимок состояния таймера сессии.
type Status struct {
	State     State
	UserID    string
	Token     string
	ExpiresAt time.Time
}

// minRefreshDelay — нижняя граница задержки продления, защищает от busy-loop
// на почти истёкших сессиях.
const minRefreshDelay = 10 * time.Millisecond

// SessionTimer поддерживает сессию живой: продлевает её через whoami,
// когда прошла заданная доля оставшегося срока, не дожидаясь истечения.
//
// Ответ сервера — единственный источник истины: очередное продление
// планируется от полученного expires_at, а любой неуспех продления —
// отказ сервера или недоступность транспорта — немедленно переводит
// таймер в StateAnonymous. Локальные часы решают только, когда спросить
// сервер снова, но не судьбу сессии.
//
// Всё состояние принадлежит единственной горутине цикла; публичные методы
// безопасны для конкурентного вызова.
type SessionTimer struct {
	client *Client
	factor float64
	now    func() time.Time

	// onDrop вызывается в горутине цикла при каждом переходе
	// Active -> Anonymous (истечение, отказ сервера, логаут).
	onDrop func()

	cmds   chan func()
	cancel context.CancelFunc
	done   chan struct{}

	// cur — рабочее состояние, доступно только из цикла.
	cur   Status
	timer *time.Timer

	// snap — копия cur для Status().
	mu   sync.Mutex
	snap Status
}

// NewSessionTimer создает таймер и запускает его цикл.
// factor — доля оставшегося срока, после которой продлевается сессия;
// значения вне (0;1) заменяются на 0.8.
func NewSessionTimer(c *Client, factor float64) *SessionTimer {
	if factor <= 0 || factor >= 1 {
		factor = 0.8
	}

	ctx, cancel := context.WithCancel(context.Background())

	t := &SessionTimer{
		client: c,
		factor: factor,
		now:    func() time.Time { return time.Now().UTC() },
		cmds:   make(chan func()),
		cancel: cancel,
		done:   make(chan struct{}),
		timer:  time.NewTimer(time.Hour),
	}
	if !t.timer.Stop() {
		<-t.timer.C
	}

	go t.run(ctx)

	return t
}

// Login выполняет вход и берёт полученную сессию под наблюдение.
func (t *SessionTimer) Login(ctx context.Context, username, password string) error {
	sess, err := t.client.Login(ctx, username, password)
	if err != nil {
		return err
	}

	t.Adopt(sess)

	return nil
}

// Register регистрирует пользователя и берёт сессию под наблюдение.
func (t *SessionTimer) Register(ctx context.Context, username, password string) error {
	sess, err := t.client.Register(ctx, username, password)
	if err != nil {
		return err
	}

	t.Adopt(sess)

	return nil
}

// Adopt принимает уже открытую сессию (например, восстановленную из
// файлового хранилища) под наблюдение таймера.
func (t *SessionTimer) Adopt(sess *protocol.LoginResponse) {
	t.exec(func() {
		t.setStatus(Status{
			State:     StateActive,
			UserID:    sess.UserID,
			Token:     sess.Token,
			ExpiresAt: time.Unix(sess.ExpiresAt, 0).UTC(),
		})
		t.schedule()
	})
}

// Logout завершает сессию на сервере и сбрасывает состояние таймера.
// Без активной сессии — no-op.
func (t *SessionTimer) Logout(ctx context.Context) error {
	st := t.Status()
	if st.State != StateActive {
		return nil
	}

	err := t.client.Logout(ctx, st.Token)

	// Локальное состояние сбрасывается даже при сетевой ошибке:
	// пользователь попросил выйти.
	t.exec(func() {
		t.drop()
	})

	return err
}

// OnDrop регистрирует обработчик перехода Active -> Anonymous: истечение,
// отказ сервера при продлении, явный логаут. Обычное применение — стереть
// сохранённый на диске токен, чтобы отозванная сессия не пережила рестарт.
// Вызывается в горутине цикла; обработчик не должен блокировать надолго.
func (t *SessionTimer) OnDrop(fn func()) {
	t.exec(func() { t.onDrop = fn })
}

// Status возвращает снимок текущего состояния.
func (t *SessionTimer) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

// Stop останавливает цикл таймера. Сессию на сервере не трогает.
func (t *SessionTimer) Stop() {
	t.cancel()
	<-t.done
}

func (t *SessionTimer) run(ctx context.Context) {
	defer close(t.done)

	for {
		select {
		case <-ctx.Done():
			t.timer.Stop()
			return
		case fn := <-t.cmds:
			fn()
		case <-t.timer.C:
			t.refresh(ctx)
		}
	}
}

// refresh продлевает сессию через whoami и перепланирует таймер
// от нового expires_at.
func (t *SessionTimer) refresh(ctx context.Context) {
	if t.cur.State != StateActive {
		return
	}

	rctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	resp, err := t.client.WhoAmI(rctx, t.cur.Token)
	cancel()

	if err != nil {
		// Отказ сервера или недоступность транспорта: без подтверждения
		// сессия не считается живой, ждать дедлайна нельзя.
		t.drop()
		return
	}

	cur := t.cur
	cur.ExpiresAt = time.Unix(resp.ExpiresAt, 0).UTC()
	t.setStatus(cur)
	t.schedule()
}

// schedule планирует продление после доли factor оставшегося срока.
func (t *SessionTimer) schedule() {
	remaining := t.cur.ExpiresAt.Sub(t.now())
	if remaining <= 0 {
		t.drop()
		return
	}

	delay := time.Duration(float64(remaining) * t.factor)
	if delay < minRefreshDelay {
		delay = minRefreshDelay
	}

	t.resetTimer(delay)
}

func (t *SessionTimer) resetTimer(d time.Duration) {
	if !t.timer.Stop() {
		select {
		case <-t.timer.C:
		default:
		}
	}
	t.timer.Reset(d)
}

func (t *SessionTimer) drop() {
	if !t.timer.Stop() {
		select {
		case <-t.timer.C:
		default:
		}
	}

	wasActive := t.cur.State == StateActive
	t.setStatus(Status{State: StateAnonymous})

	if wasActive && t.onDrop != nil {
		t.onDrop()
	}
}

func (t *SessionTimer) setStatus(st Status) {
	t.cur = st

	t.mu.Lock()
	t.snap = st
	t.mu.Unlock()
}

// exec выполняет fn в горутине цикла и дожидается завершения.
func (t *SessionTimer) exec(fn func()) {
	ran := make(chan struct{})

	select {
	case t.cmds <- func() { fn(); close(ran) }:
		<-ran
	case <-t.done:
	}
}
