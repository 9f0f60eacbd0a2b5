package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// zapCore forwards zap log entries to a Logger. The numeric packages log
// through *zap.Logger; the service funnels them into its own output through
// this core.
type zapCore struct {
	logger *Logger
}

// NewZapLogger returns a *zap.Logger whose entries end up in logger.
func NewZapLogger(logger *Logger) *zap.Logger {
	return zap.New(&zapCore{logger: logger})
}

func zapToLevel(level zapcore.Level) Level {
	switch level {
	case zapcore.DebugLevel:
		return DebugLevel
	case zapcore.InfoLevel:
		return InfoLevel
	case zapcore.WarnLevel:
		return WarnLevel
	default:
		return ErrorLevel
	}
}

func fieldsToMap(fields []zapcore.Field) Fields {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}
	out := make(Fields, len(enc.Fields))
	for k, v := range enc.Fields {
		out[k] = v
	}
	return out
}

// Enabled implements zapcore.Core.
func (c *zapCore) Enabled(level zapcore.Level) bool {
	return zapToLevel(level) >= c.logger.level
}

// With implements zapcore.Core.
func (c *zapCore) With(fields []zapcore.Field) zapcore.Core {
	return &zapCore{logger: c.logger.WithFields(fieldsToMap(fields))}
}

// Check implements zapcore.Core.
func (c *zapCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

// Write implements zapcore.Core.
func (c *zapCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	f := fieldsToMap(fields)
	if ent.LoggerName != "" {
		f["logger"] = ent.LoggerName
	}
	c.logger.log(zapToLevel(ent.Level), ent.Message, f)
	return nil
}

// Sync implements zapcore.Core.
func (c *zapCore) Sync() error { return nil }
