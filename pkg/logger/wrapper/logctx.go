package wrap

import "context"

// LogCtx carries the request-scoped fields the logger stamps on every
// record: what runs (Action), for whom (UserID), and which ride or
// driver the operation touches.
type LogCtx struct {
	Action    string
	UserID    string
	RequestID string
	RideID    string
	DriverID  string
}

type logCtxKeyStruct struct{}

// LogCtxKey is the key for log context values
var LogCtxKey = &logCtxKeyStruct{}

// with обновляет одно поле, остальной снимок сохраняется.
func with(ctx context.Context, set func(*LogCtx)) context.Context {
	lc, _ := ctx.Value(LogCtxKey).(LogCtx)
	set(&lc)
	return context.WithValue(ctx, LogCtxKey, lc)
}

// WithAction tags the context with the operation name. Set once at the
// handler or task entry point.
func WithAction(ctx context.Context, action string) context.Context {
	return with(ctx, func(lc *LogCtx) { lc.Action = action })
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return with(ctx, func(lc *LogCtx) { lc.UserID = userID })
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return with(ctx, func(lc *LogCtx) { lc.RequestID = requestID })
}

func WithRideID(ctx context.Context, rideID string) context.Context {
	return with(ctx, func(lc *LogCtx) { lc.RideID = rideID })
}

func WithDriverID(ctx context.Context, driverID string) context.Context {
	return with(ctx, func(lc *LogCtx) { lc.DriverID = driverID })
}
