// metrics — прометеевские счётчики жизненного цикла сессий.
// Экспонируются сервером на /metrics (promhttp).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Значения метки result.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

var (
	// LoginAttempts — попытки логина по результату.
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webapp_login_attempts_total",
		Help: "Login attempts by result.",
	}, []string{"result"})

	// SessionChecks — проверки/продления сессии (whoami) по результату.
	SessionChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webapp_session_checks_total",
		Help: "Session whoami checks by result.",
	}, []string{"result"})

	// SessionsSwept — количество сессий, удалённых фоновой очисткой.
	SessionsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webapp_sessions_swept_total",
		Help: "Expired sessions removed by the background sweep.",
	})
)
