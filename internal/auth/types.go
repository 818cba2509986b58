// Package auth implements the gateway's identity, team, and authorization
// model (spec §3 users/teams, §4.7 auth & tenancy).
package auth

import "time"

// Role is a team-scoped role (spec §3 TeamMember.role).
type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

// TeamVisibility mirrors catalog.Visibility for Team rows, as a type of its
// own.
type TeamVisibility string

const (
	TeamVisibilityPrivate TeamVisibility = "private"
	TeamVisibilityTeam    TeamVisibility = "team"
	TeamVisibilityPublic  TeamVisibility = "public"
)

// TokenScope bounds what an ApiToken is valid for (spec §3 ApiToken.scope).
type TokenScope string

const (
	ScopeAll    TokenScope = "all"
	ScopeTeam   TokenScope = "team"
	ScopeServer TokenScope = "server"
)

// AuthEventType enumerates spec §3 AuthEvent.event values.
type AuthEventType string

const (
	EventLogin   AuthEventType = "login"
	EventLogout  AuthEventType = "logout"
	EventRefresh AuthEventType = "refresh"
	EventFail    AuthEventType = "fail"
	EventLockout AuthEventType = "lockout"
)

// User is spec §3's User entity.
type User struct {
	Email           string     `json:"email" db:"email"`
	FullName        string     `json:"full_name" db:"full_name"`
	PasswordHash    string     `json:"-" db:"password_hash"`
	IsPlatformAdmin bool       `json:"is_platform_admin" db:"is_platform_admin"`
	IsEmailVerified bool       `json:"is_email_verified" db:"is_email_verified"`
	FailedLogins    int        `json:"failed_logins" db:"failed_logins"`
	LockedUntil     *time.Time `json:"locked_until,omitempty" db:"locked_until"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// Locked reports whether the account's lockout window is still active at t.
func (u *User) Locked(t time.Time) bool {
	return u.LockedUntil != nil && t.Before(*u.LockedUntil)
}

// Team is spec §3's Team entity.
type Team struct {
	ID         string         `json:"id" db:"id"`
	Name       string         `json:"name" db:"name"`
	OwnerEmail string         `json:"owner_email" db:"owner_email"`
	Visibility TeamVisibility `json:"visibility" db:"visibility"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}

// TeamMember is spec §3's TeamMember entity.
type TeamMember struct {
	TeamID    string    `json:"team_id" db:"team_id"`
	UserEmail string    `json:"user_email" db:"user_email"`
	Role      Role      `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TeamInvitation is spec §3's TeamInvitation entity.
type TeamInvitation struct {
	ID           string     `json:"id" db:"id"`
	TeamID       string     `json:"team_id" db:"team_id"`
	InviteeEmail string     `json:"invitee_email" db:"invitee_email"`
	Token        string     `json:"-" db:"token"`
	ExpiresAt    time.Time  `json:"expires_at" db:"expires_at"`
	UsedAt       *time.Time `json:"used_at,omitempty" db:"used_at"`
}

// Expired reports whether the invitation is past its TTL or already used.
func (i *TeamInvitation) Expired(t time.Time) bool {
	return i.UsedAt != nil || t.After(i.ExpiresAt)
}

// ApiToken is spec §3's ApiToken entity. The token secret is never
// persisted; only its jti (JWT ID) is stored so presented tokens can be
// checked for revocation.
type ApiToken struct {
	ID        string     `json:"id" db:"id"`
	UserEmail string     `json:"user_email" db:"user_email"`
	Name      string     `json:"name" db:"name"`
	JTI       string     `json:"jti" db:"jti"`
	Scope     TokenScope `json:"scope" db:"scope"`
	ScopeRef  string     `json:"scope_ref,omitempty" db:"scope_ref"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// Revoked reports whether the token has been explicitly revoked or expired.
func (t *ApiToken) Revoked(now time.Time) bool {
	if t.RevokedAt != nil {
		return true
	}
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}

// AuthEvent is spec §3's AuthEvent audit row.
type AuthEvent struct {
	ID        string        `json:"id" db:"id"`
	UserEmail string        `json:"user_email" db:"user_email"`
	Event     AuthEventType `json:"event" db:"event"`
	Timestamp time.Time     `json:"ts" db:"ts"`
	IP        string        `json:"ip,omitempty" db:"ip"`
	UserAgent string        `json:"user_agent,omitempty" db:"user_agent"`
}

// Identity is the per-request principal threaded through C2/C5/C6, built
// from a validated JWT or API token. It satisfies catalog.Principal.
type Identity struct {
	UserEmail string
	Admin     bool
	Teams     []string // team IDs the user belongs to
	Scopes    []string
	TenantID  string // team_ctx claim: the team scope this request is acting within
	TokenJTI  string
}

// Email, IsPlatformAdmin, and TeamIDs satisfy catalog.Principal so an
// Identity can be passed directly to catalog.Allowed/CanMutate.
func (i Identity) Email() string         { return i.UserEmail }
func (i Identity) IsPlatformAdmin() bool { return i.Admin }
func (i Identity) TeamIDs() []string     { return i.Teams }
