package plugin

import "time"

// UserTick adapts a bare func(diff time.Duration) into a Ticker, for
// application code that has no need for the core back-pointer.
type UserTick struct {
	fn func(diff time.Duration)
}

// NewUserTick wraps fn as a Ticker.
func NewUserTick(fn func(diff time.Duration)) *UserTick {
	return &UserTick{fn: fn}
}

// Tick implements Ticker.
func (u *UserTick) Tick(diff time.Duration) {
	u.fn(diff)
}
