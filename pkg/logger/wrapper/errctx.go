package wrap

import (
	"context"
	"errors"
)

// ctxError carries the LogCtx snapshot taken where the error happened, so
// the log record written at the top of the stack still names the action
// and ids of the failing call.
type ctxError struct {
	err    error
	logCtx LogCtx
}

func (e *ctxError) Error() string { return e.err.Error() }

func (e *ctxError) Unwrap() error { return e.err }

// Error wraps err with the LogCtx currently in ctx. A chain that already
// carries a snapshot gets it refreshed in place, чтобы поля внешнего
// вызова были главнее.
func Error(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	lc, _ := ctx.Value(LogCtxKey).(LogCtx)

	var e *ctxError
	if errors.As(err, &e) {
		e.logCtx = lc
		return err
	}

	return &ctxError{err: err, logCtx: lc}
}

// ErrorCtx returns ctx with the snapshot carried by err, if any. The logger
// stamps error records with the fields of the failing call through it.
func ErrorCtx(ctx context.Context, err error) context.Context {
	var e *ctxError
	if errors.As(err, &e) {
		return context.WithValue(ctx, LogCtxKey, e.logCtx)
	}
	return ctx
}
