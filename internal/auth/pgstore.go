package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcpgateway/gateway/internal/gwerrors"
)

// PGStore is a pgx-backed Store, persisting identity and tenancy state
// against the users/teams/team_members/team_invitations/api_tokens/
// auth_events tables (see internal/store/migrate/sql/00001_*).
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps an existing pgxpool.Pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) CreateUser(ctx context.Context, u User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (email, full_name, password_hash, is_platform_admin, is_email_verified, failed_logins, locked_until, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.Email, u.FullName, u.PasswordHash, u.IsPlatformAdmin, u.IsEmailVerified, u.FailedLogins, u.LockedUntil, u.CreatedAt)
	if isUniqueViolation(err) {
		return gwerrors.New(gwerrors.CodeConflict, "user %s already exists", u.Email)
	}
	return err
}

func (s *PGStore) GetUser(ctx context.Context, email string) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, `
		SELECT email, full_name, password_hash, is_platform_admin, is_email_verified, failed_logins, locked_until, created_at
		FROM users WHERE email = $1`, email).
		Scan(&u.Email, &u.FullName, &u.PasswordHash, &u.IsPlatformAdmin, &u.IsEmailVerified, &u.FailedLogins, &u.LockedUntil, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, gwerrors.NotFound("user %s not found", email)
	}
	return u, err
}

func (s *PGStore) UpdateUser(ctx context.Context, u User) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET full_name=$2, password_hash=$3, is_platform_admin=$4, is_email_verified=$5, failed_logins=$6, locked_until=$7
		WHERE email=$1`, u.Email, u.FullName, u.PasswordHash, u.IsPlatformAdmin, u.IsEmailVerified, u.FailedLogins, u.LockedUntil)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return gwerrors.NotFound("user %s not found", u.Email)
	}
	return nil
}

func (s *PGStore) CreateTeam(ctx context.Context, t Team) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO teams (id, name, owner_email, visibility, created_at) VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.Name, t.OwnerEmail, t.Visibility, t.CreatedAt)
	if isUniqueViolation(err) {
		return gwerrors.New(gwerrors.CodeConflict, "team %s already exists", t.ID)
	}
	return err
}

func (s *PGStore) GetTeam(ctx context.Context, id string) (Team, error) {
	var t Team
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, owner_email, visibility, created_at FROM teams WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.OwnerEmail, &t.Visibility, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Team{}, gwerrors.NotFound("team %s not found", id)
	}
	return t, err
}

func (s *PGStore) ListTeamsForUser(ctx context.Context, email string) ([]Team, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.id, t.name, t.owner_email, t.visibility, t.created_at
		FROM teams t
		JOIN team_members m ON m.team_id = t.id
		WHERE m.user_email = $1
		ORDER BY t.name`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []Team
	for rows.Next() {
		var t Team
		if err := rows.Scan(&t.ID, &t.Name, &t.OwnerEmail, &t.Visibility, &t.CreatedAt); err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

func (s *PGStore) AddTeamMember(ctx context.Context, m TeamMember) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO team_members (team_id, user_email, role, created_at) VALUES ($1, $2, $3, $4)`,
		m.TeamID, m.UserEmail, m.Role, m.CreatedAt)
	if isUniqueViolation(err) {
		return gwerrors.New(gwerrors.CodeConflict, "%s is already a member of team %s", m.UserEmail, m.TeamID)
	}
	return err
}

func (s *PGStore) RemoveTeamMember(ctx context.Context, teamID, email string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM team_members WHERE team_id = $1 AND user_email = $2`, teamID, email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return gwerrors.NotFound("%s is not a member of team %s", email, teamID)
	}
	return nil
}

func (s *PGStore) ListTeamMembers(ctx context.Context, teamID string) ([]TeamMember, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT team_id, user_email, role, created_at FROM team_members WHERE team_id = $1`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []TeamMember
	for rows.Next() {
		var m TeamMember
		if err := rows.Scan(&m.TeamID, &m.UserEmail, &m.Role, &m.CreatedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *PGStore) TeamIDsForUser(ctx context.Context, email string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT team_id FROM team_members WHERE user_email = $1 ORDER BY team_id`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PGStore) CreateInvitation(ctx context.Context, inv TeamInvitation) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO team_invitations (id, team_id, invitee_email, token, expires_at, used_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		inv.ID, inv.TeamID, inv.InviteeEmail, inv.Token, inv.ExpiresAt, inv.UsedAt)
	return err
}

func (s *PGStore) GetInvitationByToken(ctx context.Context, token string) (TeamInvitation, error) {
	var inv TeamInvitation
	err := s.pool.QueryRow(ctx, `
		SELECT id, team_id, invitee_email, token, expires_at, used_at FROM team_invitations WHERE token = $1`, token).
		Scan(&inv.ID, &inv.TeamID, &inv.InviteeEmail, &inv.Token, &inv.ExpiresAt, &inv.UsedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return TeamInvitation{}, gwerrors.NotFound("invitation not found")
	}
	return inv, err
}

func (s *PGStore) MarkInvitationUsed(ctx context.Context, id string, usedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE team_invitations SET used_at = $2 WHERE id = $1`, id, usedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return gwerrors.NotFound("invitation %s not found", id)
	}
	return nil
}

func (s *PGStore) CreateApiToken(ctx context.Context, t ApiToken) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO api_tokens (id, user_email, name, jti, scope, scope_ref, expires_at, revoked_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.UserEmail, t.Name, t.JTI, t.Scope, t.ScopeRef, t.ExpiresAt, t.RevokedAt, t.CreatedAt)
	if isUniqueViolation(err) {
		return gwerrors.New(gwerrors.CodeConflict, "token %s already exists", t.JTI)
	}
	return err
}

func (s *PGStore) GetApiTokenByJTI(ctx context.Context, jti string) (ApiToken, error) {
	var t ApiToken
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_email, name, jti, scope, scope_ref, expires_at, revoked_at, created_at
		FROM api_tokens WHERE jti = $1`, jti).
		Scan(&t.ID, &t.UserEmail, &t.Name, &t.JTI, &t.Scope, &t.ScopeRef, &t.ExpiresAt, &t.RevokedAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ApiToken{}, gwerrors.NotFound("token %s not found", jti)
	}
	return t, err
}

func (s *PGStore) RevokeApiToken(ctx context.Context, jti string, revokedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE api_tokens SET revoked_at = $2 WHERE jti = $1`, jti, revokedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return gwerrors.NotFound("token %s not found", jti)
	}
	return nil
}

// IsRevoked implements RevocationChecker by querying synchronously. Callers
// on a hot path should prefer internal/cache's revocation-list cache in
// front of this, falling back here only on a cache miss.
func (s *PGStore) IsRevoked(jti string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	t, err := s.GetApiTokenByJTI(ctx, jti)
	if err != nil {
		return false
	}
	return t.Revoked(time.Now())
}

func (s *PGStore) RecordAuthEvent(ctx context.Context, e AuthEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO auth_events (id, user_email, event, ts, ip, user_agent) VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.UserEmail, e.Event, e.Timestamp, e.IP, e.UserAgent)
	return err
}

// isUniqueViolation reports whether err is a Postgres unique_violation
// (SQLSTATE 23505), matching internal/catalog/pgstore's own check.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	type sqlStater interface{ SQLState() string }
	var s sqlStater
	if errors.As(err, &s) {
		return s.SQLState() == "23505"
	}
	return false
}
