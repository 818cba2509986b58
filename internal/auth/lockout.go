package auth

import "time"

// LockoutPolicy configures the account-lockout behavior from spec §3/§4.7:
// accounts lock for LockoutDuration after MaxFailedLogins consecutive
// failures.
type LockoutPolicy struct {
	MaxFailedLogins int
	LockoutDuration time.Duration
}

// DefaultLockoutPolicy matches common interactive-login defaults.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{MaxFailedLogins: 5, LockoutDuration: 15 * time.Minute}
}

// RecordFailure increments the user's failure counter and, once the policy
// threshold is reached, sets LockedUntil. Returns true if this call caused
// the account to become locked.
func (p LockoutPolicy) RecordFailure(u *User, now time.Time) (lockedNow bool) {
	u.FailedLogins++
	if u.FailedLogins >= p.MaxFailedLogins {
		until := now.Add(p.LockoutDuration)
		u.LockedUntil = &until
		return true
	}
	return false
}

// RecordSuccess clears the failure counter and any lockout, called after a
// successful password verification.
func (p LockoutPolicy) RecordSuccess(u *User) {
	u.FailedLogins = 0
	u.LockedUntil = nil
}
