// log переносит request-scoped *slog.Logger через context.Context:
// мидлвар кладёт логгер с request_id, нижние слои достают его через From
// и пишут в тот же поток атрибутов.
package log

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// Into возвращает контекст с привязанным логгером.
func Into(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From возвращает логгер из контекста; если его там нет — slog.Default(),
// чтобы вызывающему коду не нужна была проверка на nil.
func From(ctx context.Context) *slog.Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}

	return slog.Default()
}
