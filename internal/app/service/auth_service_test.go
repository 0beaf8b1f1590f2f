package service

import (
	"context"
	"errors"
	"testing"

	"algoforge/internal/common"
	"algoforge/internal/common/security"
	"algoforge/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIssuesUsableToken(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	resp, err := f.auth.Register(ctx, RegisterRequest{Name: " Ada ", Email: " Ada@Example.com ", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", resp.Name)
	assert.Equal(t, "ada@example.com", resp.Email)
	assert.Equal(t, model.RoleUser, resp.Role)
	assert.NotEmpty(t, resp.Token)

	userID, err := f.auth.Authenticate(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.ID, userID)

	stored, err := f.store.FindByID(ctx, resp.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", stored.HashedPassword)
	assert.Equal(t, 1, stored.Streak)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	cases := map[string]RegisterRequest{
		"missing name":   {Email: "a@example.com", Password: "secret123"},
		"missing email":  {Name: "A", Password: "secret123"},
		"bad email":      {Name: "A", Email: "not-an-email", Password: "secret123"},
		"short password": {Name: "A", Email: "a@example.com", Password: "123"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.auth.Register(ctx, req)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t, "Ada", "ada@example.com")

	_, err := f.auth.Register(context.Background(), RegisterRequest{Name: "Other", Email: "ADA@example.com", Password: "secret123"})
	require.ErrorIs(t, err, common.ErrConflict)
	assert.Equal(t, 400, common.HTTPStatusFromError(err))
}

func TestLogin(t *testing.T) {
	f := newFixture(t, nil)
	registered := f.register(t, "Ada", "ada@example.com")
	ctx := context.Background()

	resp, err := f.auth.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, registered.ID, resp.ID)

	_, err = f.auth.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "wrong-pass"})
	assert.ErrorIs(t, err, common.ErrBadCredentials)

	_, err = f.auth.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "secret123"})
	assert.ErrorIs(t, err, common.ErrBadCredentials)

	_, err = f.auth.Login(ctx, LoginRequest{Email: "ada@example.com"})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.auth.Authenticate("not.a.token")
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestCurrentUserIncludesSolvedAndActivity(t *testing.T) {
	f := newFixture(t, nil)
	user := f.register(t, "Ada", "ada@example.com")
	problem := f.seedProblem(t, "Two Sum", model.DifficultyEasy)
	ctx := context.Background()

	_, err := f.actions.SetStatus(ctx, user.ID, problem.ID, "SOLVED")
	require.NoError(t, err)

	profile, err := f.auth.CurrentUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{problem.ID}, profile.SolvedProblems)
	assert.Equal(t, 10, profile.XP)
	require.Len(t, profile.ActivityLog, 2)
	assert.Equal(t, model.ActivityProblemSolved, profile.ActivityLog[0].Kind)
	assert.Equal(t, model.ActivityLogin, profile.ActivityLog[1].Kind)
}

type fakeVerifier struct {
	identity *security.ExternalIdentity
	err      error
}

func (v fakeVerifier) Verify(ctx context.Context, token string) (*security.ExternalIdentity, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.identity, nil
}

func googleIdentity(email string) *security.ExternalIdentity {
	return &security.ExternalIdentity{
		Provider:      "google",
		Subject:       "google-sub-1",
		Email:         email,
		EmailVerified: true,
		Name:          "Grace",
	}
}

func TestLoginWithGoogleCreatesUser(t *testing.T) {
	f := newFixture(t, fakeVerifier{identity: googleIdentity("grace@example.com")})
	ctx := context.Background()

	resp, err := f.auth.LoginWithGoogle(ctx, GoogleLoginRequest{Token: "id-token"})
	require.NoError(t, err)
	assert.True(t, resp.IsNewUser)
	assert.Equal(t, "Grace", resp.Name)

	again, err := f.auth.LoginWithGoogle(ctx, GoogleLoginRequest{Token: "id-token"})
	require.NoError(t, err)
	assert.False(t, again.IsNewUser)
	assert.Equal(t, resp.ID, again.ID)

	users, err := f.store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestLoginWithGoogleLinksExistingAccount(t *testing.T) {
	f := newFixture(t, fakeVerifier{identity: googleIdentity("ada@example.com")})
	existing := f.register(t, "Ada", "ada@example.com")
	ctx := context.Background()

	resp, err := f.auth.LoginWithGoogle(ctx, GoogleLoginRequest{Token: "id-token"})
	require.NoError(t, err)
	assert.False(t, resp.IsNewUser)
	assert.Equal(t, existing.ID, resp.ID)

	stored, err := f.store.FindByID(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "google-sub-1", stored.GoogleID)
}

func TestLoginWithGoogleFailures(t *testing.T) {
	ctx := context.Background()

	unverified := googleIdentity("grace@example.com")
	unverified.EmailVerified = false

	cases := []struct {
		name     string
		verifier security.IdentityVerifier
		token    string
		want     error
	}{
		{"missing token", fakeVerifier{identity: googleIdentity("g@example.com")}, "", common.ErrValidation},
		{"not configured", nil, "id-token", common.ErrUpstream},
		{"rejected", fakeVerifier{err: security.ErrIdentityRejected}, "id-token", common.ErrBadCredentials},
		{"provider down", fakeVerifier{err: security.ErrProviderUnavailable}, "id-token", common.ErrUpstream},
		{"unverified email", fakeVerifier{identity: unverified}, "id-token", common.ErrBadCredentials},
		{"other failure", fakeVerifier{err: errors.New("boom")}, "id-token", common.ErrBadCredentials},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.verifier)
			_, err := f.auth.LoginWithGoogle(ctx, GoogleLoginRequest{Token: tc.token})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}
