package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/colefleming/vouch/internal/models"
	pkgauth "github.com/colefleming/vouch/pkg/auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateInvite_StoresHashOnly(t *testing.T) {
	f := newFixture(testPolicy())

	admin := testUser("admin")

	var stored *models.Invite
	f.invites.CreateFunc = func(ctx context.Context, invite *models.Invite) (*models.Invite, error) {
		created := *invite
		created.ID = uuid.New()
		stored = &created
		return &created, nil
	}

	code, invite, err := f.inviteService.CreateInvite(context.Background(), admin.ID)

	require.NoError(t, err)
	require.NotEmpty(t, code)
	assert.Equal(t, admin.ID, invite.CreatedBy)

	require.NotNil(t, stored)
	assert.NotEqual(t, code, stored.CodeHash)
	assert.NoError(t, pkgauth.CompareInviteCode(stored.CodeHash, code))
	assert.WithinDuration(t, time.Now().Add(14*24*time.Hour), stored.ExpiresAt, 5*time.Second)
}

func TestClaimInvite_IssuesFullSession(t *testing.T) {
	f := newFixture(testPolicy())

	admin := testUser("admin")
	code := "some-invite-code"
	hash, err := pkgauth.HashInviteCode(code)
	require.NoError(t, err)

	invite := &models.Invite{
		ID:        uuid.New(),
		CodeHash:  hash,
		CreatedBy: admin.ID,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	f.invites.ListClaimableFunc = func(ctx context.Context) ([]*models.Invite, error) {
		return []*models.Invite{invite}, nil
	}

	var claimedBy uuid.UUID
	f.invites.ClaimFunc = func(ctx context.Context, inviteID, userID uuid.UUID) (bool, error) {
		assert.Equal(t, invite.ID, inviteID)
		claimedBy = userID
		return true, nil
	}

	result, err := f.inviteService.ClaimInvite(context.Background(), code, "newcomer", nil, "test-agent/1.0", "192.0.2.10")

	require.NoError(t, err)
	assert.Equal(t, "newcomer", result.User.Username)
	require.NotNil(t, result.User.InvitedBy)
	assert.Equal(t, admin.ID, *result.User.InvitedBy)
	assert.Equal(t, result.User.ID, claimedBy)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, models.AuthLevelFull, result.Session.Level)
	assert.Contains(t, f.auditActions(), models.AuditActionUserRegistered)
}

func TestClaimInvite_WrongCode(t *testing.T) {
	f := newFixture(testPolicy())

	hash, err := pkgauth.HashInviteCode("real-code")
	require.NoError(t, err)

	f.invites.ListClaimableFunc = func(ctx context.Context) ([]*models.Invite, error) {
		return []*models.Invite{{
			ID:        uuid.New(),
			CodeHash:  hash,
			ExpiresAt: time.Now().Add(24 * time.Hour),
		}}, nil
	}

	_, err = f.inviteService.ClaimInvite(context.Background(), "wrong-code", "newcomer", nil, "test-agent/1.0", "192.0.2.10")

	assert.ErrorIs(t, err, models.ErrInviteInvalid)
}

func TestClaimInvite_ExpiredInvite(t *testing.T) {
	f := newFixture(testPolicy())

	code := "stale-code"
	hash, err := pkgauth.HashInviteCode(code)
	require.NoError(t, err)

	f.invites.ListClaimableFunc = func(ctx context.Context) ([]*models.Invite, error) {
		return []*models.Invite{{
			ID:        uuid.New(),
			CodeHash:  hash,
			ExpiresAt: time.Now().Add(-time.Hour),
		}}, nil
	}

	_, err = f.inviteService.ClaimInvite(context.Background(), code, "newcomer", nil, "test-agent/1.0", "192.0.2.10")

	assert.ErrorIs(t, err, models.ErrInviteInvalid)
}

func TestClaimInvite_LostClaimRace(t *testing.T) {
	f := newFixture(testPolicy())

	code := "contested-code"
	hash, err := pkgauth.HashInviteCode(code)
	require.NoError(t, err)

	f.invites.ListClaimableFunc = func(ctx context.Context) ([]*models.Invite, error) {
		return []*models.Invite{{
			ID:        uuid.New(),
			CodeHash:  hash,
			ExpiresAt: time.Now().Add(24 * time.Hour),
		}}, nil
	}
	f.invites.ClaimFunc = func(ctx context.Context, inviteID, userID uuid.UUID) (bool, error) {
		return false, nil
	}

	var createdID uuid.UUID
	f.users.CreateFunc = func(ctx context.Context, user *models.User) (*models.User, error) {
		created := *user
		created.ID = uuid.New()
		createdID = created.ID
		return &created, nil
	}
	var deletedID uuid.UUID
	f.users.DeleteFunc = func(ctx context.Context, id uuid.UUID) error {
		deletedID = id
		return nil
	}

	_, err = f.inviteService.ClaimInvite(context.Background(), code, "newcomer", nil, "test-agent/1.0", "192.0.2.10")

	assert.ErrorIs(t, err, models.ErrInviteInvalid)
	// The losing claimant must not keep an account it could log in with
	assert.Equal(t, createdID, deletedID)
}

func TestClaimInvite_DuplicateUsername(t *testing.T) {
	f := newFixture(testPolicy())

	code := "good-code"
	hash, err := pkgauth.HashInviteCode(code)
	require.NoError(t, err)

	f.invites.ListClaimableFunc = func(ctx context.Context) ([]*models.Invite, error) {
		return []*models.Invite{{
			ID:        uuid.New(),
			CodeHash:  hash,
			ExpiresAt: time.Now().Add(24 * time.Hour),
		}}, nil
	}
	f.users.CreateFunc = func(ctx context.Context, user *models.User) (*models.User, error) {
		return nil, models.ErrConflict
	}

	_, err = f.inviteService.ClaimInvite(context.Background(), code, "taken", nil, "test-agent/1.0", "192.0.2.10")

	assert.ErrorIs(t, err, models.ErrConflict)
}
