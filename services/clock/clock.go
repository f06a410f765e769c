// Package clock provides the injected time source used by every
// time-dependent security decision (lockout expiry, token expiry,
// TOTP steps). Services never read the system clock directly so tests
// can pin time.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

func NewSystemClock() Clock {
	return systemClock{}
}
