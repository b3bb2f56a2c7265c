package httpapi

import (
	"errors"
	"net/http"

	"github.com/pribylovaa/go-webapp/internal/metrics"
	"github.com/pribylovaa/go-webapp/internal/protocol"
	"github.com/pribylovaa/go-webapp/internal/service"
)

// Handlers агрегирует зависимости HTTP-обработчиков.
type Handlers struct {
	svc *service.Service
}

func NewHandlers(svc *service.Service) *Handlers {
	return &Handlers{svc: svc}
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	in, ok := readMessage[*protocol.RegisterRequest](w, r)
	if !ok {
		return
	}

	tok, err := h.svc.Register(r.Context(), in.Username, in.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	setSessionCookie(w, tok.Token, tok.ExpiresAt)
	writeMessage(w, http.StatusOK, &protocol.LoginResponse{
		UserID:    tok.UserID.String(),
		Token:     tok.Token,
		ExpiresAt: tok.ExpiresAt.Unix(),
	})
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	in, ok := readMessage[*protocol.LoginRequest](w, r)
	if !ok {
		return
	}

	tok, err := h.svc.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			metrics.LoginAttempts.WithLabelValues(metrics.ResultRejected).Inc()
			writeLoginRejected(w)
			return
		}

		metrics.LoginAttempts.WithLabelValues(metrics.ResultError).Inc()
		writeServiceError(w, r, err)
		return
	}

	metrics.LoginAttempts.WithLabelValues(metrics.ResultOK).Inc()
	setSessionCookie(w, tok.Token, tok.ExpiresAt)
	writeMessage(w, http.StatusOK, &protocol.LoginResponse{
		UserID:    tok.UserID.String(),
		Token:     tok.Token,
		ExpiresAt: tok.ExpiresAt.Unix(),
	})
}

func (h *Handlers) WhoAmI(w http.ResponseWriter, r *http.Request) {
	in, ok := readMessage[*protocol.WhoAmIRequest](w, r)
	if !ok {
		return
	}

	info, err := h.svc.WhoAmI(r.Context(), in.Token)
	if err != nil {
		if errors.Is(err, service.ErrNotAuthenticated) {
			metrics.SessionChecks.WithLabelValues(metrics.ResultRejected).Inc()
		} else {
			metrics.SessionChecks.WithLabelValues(metrics.ResultError).Inc()
		}
		writeServiceError(w, r, err)
		return
	}

	metrics.SessionChecks.WithLabelValues(metrics.ResultOK).Inc()
	writeMessage(w, http.StatusOK, &protocol.WhoAmIResponse{
		UserID:    info.UserID.String(),
		ExpiresAt: info.ExpiresAt.Unix(),
	})
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	in, ok := readMessage[*protocol.LogoutRequest](w, r)
	if !ok {
		return
	}

	if err := h.svc.Logout(r.Context(), in.Token); err != nil {
		writeServiceError(w, r, err)
		return
	}

	clearSessionCookie(w)
	writeMessage(w, http.StatusOK, &protocol.LogoutResponse{})
}
