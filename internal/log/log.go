package log

import (
	"io"
	"os"
	"sync"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	logger = newLogger(os.Stdout)
)

func newLogger(w io.Writer) *zap.Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.RFC3339TimeEncoder
	enc.MessageKey = "action"
	enc.LevelKey = "level"
	enc.CallerKey = ""
	enc.StacktraceKey = ""
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(w), zapcore.DebugLevel)
	return zap.New(core)
}

// SetOutput redirects every subsequent entry to w.
func SetOutput(w io.Writer) {
	l := newLogger(w)
	mu.Lock()
	old := logger
	logger = l
	mu.Unlock()
	_ = old.Sync()
}

func current() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Sync() { _ = current().Sync() }

func write(level zapcore.Level, kind string, c *fiber.Ctx, action string, err error, fields map[string]any) {
	zf := make([]zap.Field, 0, 10)
	if kind != "" {
		zf = append(zf, zap.String("kind", kind))
	}
	if c != nil {
		zf = append(zf,
			zap.String("ip", c.IP()),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
		)
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			zf = append(zf, zap.String("req_id", rid))
		}
		if acct, ok := c.Locals("account").(string); ok && acct != "" {
			zf = append(zf, zap.String("account_id", acct))
		}
	}
	if err != nil {
		zf = append(zf, zap.String("err", err.Error()))
	}
	if len(fields) > 0 {
		zf = append(zf, zap.Any("fields", fields))
	}
	if ce := current().Check(level, action); ce != nil {
		ce.Write(zf...)
	}
}

func Info(c *fiber.Ctx, action string, fields map[string]any) {
	write(zapcore.InfoLevel, "", c, action, nil, fields)
}
func Audit(c *fiber.Ctx, action string, fields map[string]any) {
	write(zapcore.InfoLevel, "audit", c, action, nil, fields)
}

// Warn is for soft data problems: dropped lines, coerced prices, reverts.
func Warn(c *fiber.Ctx, action string, err error, fields map[string]any) {
	write(zapcore.WarnLevel, "", c, action, err, fields)
}
func Security(c *fiber.Ctx, action string, fields map[string]any) {
	write(zapcore.WarnLevel, "security", c, action, nil, fields)
}
func Error(c *fiber.Ctx, action string, err error, fields map[string]any) {
	write(zapcore.ErrorLevel, "", c, action, err, fields)
}
