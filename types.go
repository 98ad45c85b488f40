package identity

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Clock lets tests drive expiry without sleeping.
type Clock func() time.Time

// Mailer delivers outbound notifications. Email transport lives outside
// this module, implementations only need the three-argument contract.
type Mailer interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// Config holds identity options
type Config interface {
	GetSessionTTL() time.Duration
	GetActivationTokenTTL() time.Duration
	GetHashCost() int
	GetCookieSecure() bool
	GetOrigin() string
}

// SimpleConfig is a struct based Config for callers that do not bring
// their own configuration layer.
type SimpleConfig struct {
	SessionTTL         time.Duration
	ActivationTokenTTL time.Duration
	HashCost           int
	CookieSecure       bool
	Origin             string
}

func (c SimpleConfig) GetSessionTTL() time.Duration {
	if c.SessionTTL <= 0 {
		return DefaultSessionTTL
	}
	return c.SessionTTL
}

func (c SimpleConfig) GetActivationTokenTTL() time.Duration {
	if c.ActivationTokenTTL <= 0 {
		return DefaultActivationTokenTTL
	}
	return c.ActivationTokenTTL
}

func (c SimpleConfig) GetHashCost() int {
	if c.HashCost <= 0 {
		return DefaultHashCost
	}
	return c.HashCost
}

func (c SimpleConfig) GetCookieSecure() bool {
	return c.CookieSecure
}

func (c SimpleConfig) GetOrigin() string {
	if c.Origin == "" {
		return "http://localhost:3000"
	}
	return c.Origin
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] IDENTITY "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] IDENTITY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] IDENTITY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] IDENTITY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
