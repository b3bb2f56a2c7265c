package httpapi

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	logctx "github.com/pribylovaa/go-webapp/internal/pkg/log"
	"github.com/pribylovaa/go-webapp/internal/protocol"
	"github.com/pribylovaa/go-webapp/internal/service"
)

// contentTypeCBOR — единственный тип содержимого протокола.
const contentTypeCBOR = "application/cbor"

// maxBodyBytes ограничивает размер тела запроса: сообщения протокола
// заведомо небольшие.
const maxBodyBytes = 64 << 10

// sessionCookieName — имя cookie с сессионным токеном. Cookie служит
// удобством для браузера; источником истины остаётся токен в теле сообщения.
const sessionCookieName = "session"

// readMessage читает и декодирует тело запроса в сообщение ожидаемого типа.
func readMessage[M protocol.Message](w http.ResponseWriter, r *http.Request) (M, bool) {
	var zero M

	if ct := r.Header.Get("Content-Type"); ct != "" && ct != contentTypeCBOR {
		writeError(w, http.StatusUnsupportedMediaType, protocol.CodeBadRequest, "expected application/cbor")
		return zero, false
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, protocol.CodeBadRequest, "malformed request")
		return zero, false
	}

	msg, err := protocol.DecodeExpect[M](body)
	if err != nil {
		writeError(w, http.StatusBadRequest, protocol.CodeBadRequest, "malformed request")
		return zero, false
	}

	return msg, true
}

// writeMessage — единый ответ CBOR с нужным Content-Type.
func writeMessage(w http.ResponseWriter, status int, msg protocol.Message) {
	body, err := protocol.Encode(msg)
	if err != nil {
		// Кодирование собственных ответов не ломается в нормальной работе.
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentTypeCBOR)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeError пишет унифицированную CBOR-ошибку.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeMessage(w, status, &protocol.ErrorResponse{Code: code, Message: message})
}

// writeLoginRejected — единственная точка формирования отказа в логине.
// Текст и код не зависят от причины: ответ для неизвестного имени и для
// неверного пароля совпадает с точностью до байта.
func writeLoginRejected(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, protocol.CodeUnauthenticated, "wrong username or password")
}

// writeServiceError маппит ошибки бизнес-логики на HTTP-статусы.
// Неизвестные ошибки логируются и отдаются как 500/internal без деталей.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, protocol.CodeUnauthenticated, "not authenticated")
	case errors.Is(err, service.ErrUsernameTaken):
		writeError(w, http.StatusConflict, protocol.CodeAlreadyExists, "username already taken")
	case errors.Is(err, service.ErrInvalidUsername):
		writeError(w, http.StatusBadRequest, protocol.CodeInvalidArgument, "invalid username")
	case errors.Is(err, service.ErrEmptyPassword), errors.Is(err, service.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, protocol.CodeInvalidArgument, "password does not meet requirements")
	default:
		logctx.From(r.Context()).LogAttrs(r.Context(), slog.LevelError, "internal_error",
			slog.String("path", r.URL.Path),
			slog.String("err", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, protocol.CodeInternal, "internal error")
	}
}

// setSessionCookie выставляет cookie с токеном до конца срока сессии.
func setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// clearSessionCookie стирает cookie сессии.
func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}
