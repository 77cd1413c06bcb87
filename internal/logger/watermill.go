package logger

import (
	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/zap"
)

// WatermillAdapter routes watermill logs through zap
type WatermillAdapter struct {
	log *zap.Logger
}

// NewWatermillAdapter wraps log for use by watermill publishers and routers
func NewWatermillAdapter(log *zap.Logger) watermill.LoggerAdapter {
	return &WatermillAdapter{log: log}
}

func fields(f watermill.LogFields) []zap.Field {
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		out = append(out, zap.Any(k, v))
	}
	return out
}

func (a *WatermillAdapter) Error(msg string, err error, f watermill.LogFields) {
	a.log.Error(msg, append(fields(f), zap.Error(err))...)
}

func (a *WatermillAdapter) Info(msg string, f watermill.LogFields) {
	a.log.Info(msg, fields(f)...)
}

func (a *WatermillAdapter) Debug(msg string, f watermill.LogFields) {
	a.log.Debug(msg, fields(f)...)
}

// Trace maps to debug, zap has no lower level
func (a *WatermillAdapter) Trace(msg string, f watermill.LogFields) {
	a.log.Debug(msg, fields(f)...)
}

func (a *WatermillAdapter) With(f watermill.LogFields) watermill.LoggerAdapter {
	return &WatermillAdapter{log: a.log.With(fields(f)...)}
}
