package middleware

import (
	"context"
	"net/http"
	"time"
)

// Timeout задаёт запросу общий дедлайн через контекст. Уже установленный
// дедлайн (например, от вышестоящего прокси) не перекрывается.
func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		// Нулевая или отрицательная длительность выключает мидлвар.
		if d <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := r.Context().Deadline(); ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
