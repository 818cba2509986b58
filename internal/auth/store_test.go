package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStoreUserLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	u := User{Email: "alice@example.com", FullName: "Alice", CreatedAt: time.Now()}
	require.NoError(t, s.CreateUser(ctx, u))

	err := s.CreateUser(ctx, u)
	assert.Error(t, err)

	got, err := s.GetUser(ctx, u.Email)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.FullName)

	got.FullName = "Alice B."
	require.NoError(t, s.UpdateUser(ctx, got))

	got2, err := s.GetUser(ctx, u.Email)
	require.NoError(t, err)
	assert.Equal(t, "Alice B.", got2.FullName)

	_, err = s.GetUser(ctx, "nobody@example.com")
	assert.Error(t, err)
}

func TestMemStoreTeamMembership(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	team := Team{ID: "team-1", Name: "Platform"}
	require.NoError(t, s.CreateTeam(ctx, team))

	require.NoError(t, s.AddTeamMember(ctx, TeamMember{TeamID: "team-1", UserEmail: "bob@example.com", Role: RoleOwner}))
	err := s.AddTeamMember(ctx, TeamMember{TeamID: "team-1", UserEmail: "bob@example.com", Role: RoleMember})
	assert.Error(t, err)

	ids, err := s.TeamIDsForUser(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"team-1"}, ids)

	teams, err := s.ListTeamsForUser(ctx, "bob@example.com")
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.Equal(t, "Platform", teams[0].Name)

	require.NoError(t, s.RemoveTeamMember(ctx, "team-1", "bob@example.com"))
	ids, err = s.TeamIDsForUser(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMemStoreApiTokenRevocation(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	tok := ApiToken{ID: "tok-1", UserEmail: "carol@example.com", JTI: "jti-1", Scope: ScopeAll, CreatedAt: time.Now()}
	require.NoError(t, s.CreateApiToken(ctx, tok))
	assert.False(t, s.IsRevoked("jti-1"))

	require.NoError(t, s.RevokeApiToken(ctx, "jti-1", time.Now()))
	assert.True(t, s.IsRevoked("jti-1"))
	assert.False(t, s.IsRevoked("unknown-jti"))
}

func TestMemStoreInvitationLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	inv := TeamInvitation{ID: "inv-1", TeamID: "team-1", InviteeEmail: "dana@example.com", Token: "secret-token", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, s.CreateInvitation(ctx, inv))

	got, err := s.GetInvitationByToken(ctx, "secret-token")
	require.NoError(t, err)
	assert.False(t, got.Expired(time.Now()))

	require.NoError(t, s.MarkInvitationUsed(ctx, inv.ID, time.Now()))
	got2, err := s.GetInvitationByToken(ctx, "secret-token")
	require.NoError(t, err)
	assert.True(t, got2.Expired(time.Now()))
}

func TestPasswordAndLockoutIntegration(t *testing.T) {
	params := DefaultPasswordParams()
	hash, err := HashPassword("correct horse battery staple", params)
	require.NoError(t, err)

	ok, err := VerifyPassword("correct horse battery staple", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("wrong password", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	policy := DefaultLockoutPolicy()
	u := &User{Email: "erin@example.com"}
	now := time.Now()
	for i := 0; i < policy.MaxFailedLogins-1; i++ {
		locked := policy.RecordFailure(u, now)
		assert.False(t, locked)
	}
	locked := policy.RecordFailure(u, now)
	assert.True(t, locked)
	assert.True(t, u.Locked(now))

	policy.RecordSuccess(u)
	assert.False(t, u.Locked(now))
	assert.Equal(t, 0, u.FailedLogins)
}
