package auth

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mcpgateway/gateway/internal/gwerrors"
)

// Store persists the full identity and tenancy model (spec §3): users,
// teams, memberships, invitations, API tokens, and auth events. Dispatch
// and the HTTP transport only ever see the Identity projection built from
// a validated token; Store is consulted by the login/session-management
// paths and by RevocationChecker implementations.
type Store interface {
	CreateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, email string) (User, error)
	UpdateUser(ctx context.Context, u User) error

	CreateTeam(ctx context.Context, t Team) error
	GetTeam(ctx context.Context, id string) (Team, error)
	ListTeamsForUser(ctx context.Context, email string) ([]Team, error)

	AddTeamMember(ctx context.Context, m TeamMember) error
	RemoveTeamMember(ctx context.Context, teamID, email string) error
	ListTeamMembers(ctx context.Context, teamID string) ([]TeamMember, error)
	TeamIDsForUser(ctx context.Context, email string) ([]string, error)

	CreateInvitation(ctx context.Context, inv TeamInvitation) error
	GetInvitationByToken(ctx context.Context, token string) (TeamInvitation, error)
	MarkInvitationUsed(ctx context.Context, id string, usedAt time.Time) error

	CreateApiToken(ctx context.Context, t ApiToken) error
	GetApiTokenByJTI(ctx context.Context, jti string) (ApiToken, error)
	RevokeApiToken(ctx context.Context, jti string, revokedAt time.Time) error
	IsRevoked(jti string) bool // satisfies RevocationChecker

	RecordAuthEvent(ctx context.Context, e AuthEvent) error
}

// MemStore is an in-memory Store, useful for tests and for single-node
// deployments that don't need durable identity state.
type MemStore struct {
	mu sync.RWMutex

	users       map[string]User
	teams       map[string]Team
	members     map[string][]TeamMember // teamID -> members
	invitations map[string]TeamInvitation
	tokens      map[string]ApiToken // jti -> token
	events      []AuthEvent
}

// NewMemStore builds an empty in-memory Store.
func NewMemStore() *MemStore {
	return &MemStore{
		users:       make(map[string]User),
		teams:       make(map[string]Team),
		members:     make(map[string][]TeamMember),
		invitations: make(map[string]TeamInvitation),
		tokens:      make(map[string]ApiToken),
	}
}

func (s *MemStore) CreateUser(_ context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[u.Email]; exists {
		return gwerrors.New(gwerrors.CodeConflict, "user %s already exists", u.Email)
	}
	s.users[u.Email] = u
	return nil
}

func (s *MemStore) GetUser(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[email]
	if !ok {
		return User{}, gwerrors.NotFound("user %s not found", email)
	}
	return u, nil
}

func (s *MemStore) UpdateUser(_ context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Email]; !ok {
		return gwerrors.NotFound("user %s not found", u.Email)
	}
	s.users[u.Email] = u
	return nil
}

func (s *MemStore) CreateTeam(_ context.Context, t Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.teams[t.ID]; exists {
		return gwerrors.New(gwerrors.CodeConflict, "team %s already exists", t.ID)
	}
	s.teams[t.ID] = t
	return nil
}

func (s *MemStore) GetTeam(_ context.Context, id string) (Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.teams[id]
	if !ok {
		return Team{}, gwerrors.NotFound("team %s not found", id)
	}
	return t, nil
}

func (s *MemStore) ListTeamsForUser(_ context.Context, email string) ([]Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.teamIDsForUserLocked(email)
	teams := make([]Team, 0, len(ids))
	for _, id := range ids {
		if t, ok := s.teams[id]; ok {
			teams = append(teams, t)
		}
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].Name < teams[j].Name })
	return teams, nil
}

func (s *MemStore) AddTeamMember(_ context.Context, m TeamMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.members[m.TeamID] {
		if existing.UserEmail == m.UserEmail {
			return gwerrors.New(gwerrors.CodeConflict, "%s is already a member of team %s", m.UserEmail, m.TeamID)
		}
	}
	s.members[m.TeamID] = append(s.members[m.TeamID], m)
	return nil
}

func (s *MemStore) RemoveTeamMember(_ context.Context, teamID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := s.members[teamID]
	for i, m := range members {
		if m.UserEmail == email {
			s.members[teamID] = append(members[:i], members[i+1:]...)
			return nil
		}
	}
	return gwerrors.NotFound("%s is not a member of team %s", email, teamID)
}

func (s *MemStore) ListTeamMembers(_ context.Context, teamID string) ([]TeamMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TeamMember, len(s.members[teamID]))
	copy(out, s.members[teamID])
	return out, nil
}

func (s *MemStore) TeamIDsForUser(_ context.Context, email string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.teamIDsForUserLocked(email), nil
}

func (s *MemStore) teamIDsForUserLocked(email string) []string {
	var ids []string
	for teamID, members := range s.members {
		for _, m := range members {
			if m.UserEmail == email {
				ids = append(ids, teamID)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids
}

func (s *MemStore) CreateInvitation(_ context.Context, inv TeamInvitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invitations[inv.ID] = inv
	return nil
}

func (s *MemStore) GetInvitationByToken(_ context.Context, token string) (TeamInvitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inv := range s.invitations {
		if inv.Token == token {
			return inv, nil
		}
	}
	return TeamInvitation{}, gwerrors.NotFound("invitation not found")
}

func (s *MemStore) MarkInvitationUsed(_ context.Context, id string, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[id]
	if !ok {
		return gwerrors.NotFound("invitation %s not found", id)
	}
	inv.UsedAt = &usedAt
	s.invitations[id] = inv
	return nil
}

func (s *MemStore) CreateApiToken(_ context.Context, t ApiToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tokens[t.JTI]; exists {
		return gwerrors.New(gwerrors.CodeConflict, "token %s already exists", t.JTI)
	}
	s.tokens[t.JTI] = t
	return nil
}

func (s *MemStore) GetApiTokenByJTI(_ context.Context, jti string) (ApiToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[jti]
	if !ok {
		return ApiToken{}, gwerrors.NotFound("token %s not found", jti)
	}
	return t, nil
}

func (s *MemStore) RevokeApiToken(_ context.Context, jti string, revokedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[jti]
	if !ok {
		return gwerrors.NotFound("token %s not found", jti)
	}
	t.RevokedAt = &revokedAt
	s.tokens[jti] = t
	return nil
}

func (s *MemStore) IsRevoked(jti string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[jti]
	if !ok {
		return false
	}
	return t.Revoked(time.Now())
}

func (s *MemStore) RecordAuthEvent(_ context.Context, e AuthEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}
