package middleware

import (
	"log/slog"
	"net/http"

	logctx "github.com/pribylovaa/go-webapp/internal/pkg/log"
	"github.com/pribylovaa/go-webapp/internal/protocol"
)

// Recover перехватывает panic, конвертирует в 500/internal и пишет унифицированный
// CBOR-ответ. Детали паники не утекают на клиент.
func Recover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					// Безопасно логируем факт паники; детали наружу не отдаем.
					logctx.From(r.Context()).
						LogAttrs(r.Context(), slog.LevelError, "panic",
							slog.String("path", r.URL.Path),
							slog.Any("reason", rec),
						)

					body, err := protocol.Encode(&protocol.ErrorResponse{
						Code:    protocol.CodeInternal,
						Message: "internal error",
					})
					if err != nil {
						w.WriteHeader(http.StatusInternalServerError)
						return
					}

					w.Header().Set("Content-Type", "application/cbor")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write(body)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
