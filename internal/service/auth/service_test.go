package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Identity), args.Error(1)
}

func TestClassify(t *testing.T) {
	misconfigured := []string{
		"Could not load the default credentials. Browse to https://cloud.google.com/docs/authentication",
		"google: could not find default credentials",
		"oauth2: cannot fetch token: invalid_grant",
		"getaddrinfo ENOTFOUND metadata.google.internal",
		"dial tcp: lookup oauth2.googleapis.com: no such host",
	}
	for _, msg := range misconfigured {
		assert.ErrorIs(t, Classify(errors.New(msg)), ErrMisconfigured, msg)
	}

	err := Classify(errors.New("ID token has expired"))
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.NotErrorIs(t, err, ErrMisconfigured)

	assert.NoError(t, Classify(nil))

	wrapped := fmt.Errorf("%w: auth client unavailable", ErrMisconfigured)
	assert.Same(t, wrapped, Classify(wrapped))
}

func TestAllowlist(t *testing.T) {
	list := ParseAllowlist(" Owner@Example.com, ,second@example.com ")
	assert.True(t, list.Allows("owner@example.com"))
	assert.True(t, list.Allows("SECOND@example.com"))
	assert.False(t, list.Allows("owner@example.org"))
	assert.False(t, list.Allows(""))
	assert.Len(t, list, 2)
}

func TestAuthService_Authenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("Allowed", func(t *testing.T) {
		verifier := new(MockVerifier)
		verifier.On("Verify", ctx, "good").Return(&Identity{UID: "u1", Email: "Owner@Example.com"}, nil)
		svc := NewAuthService(verifier, ParseAllowlist("owner@example.com"), ConfigStatus{})

		id, err := svc.Authenticate(ctx, "good")
		require.NoError(t, err)
		assert.Equal(t, "owner@example.com", id.Email)
		verifier.AssertExpectations(t)
	})

	t.Run("Forbidden", func(t *testing.T) {
		verifier := new(MockVerifier)
		verifier.On("Verify", ctx, "good").Return(&Identity{UID: "u2", Email: "guest@example.com"}, nil)
		svc := NewAuthService(verifier, ParseAllowlist("owner@example.com"), ConfigStatus{})

		_, err := svc.Authenticate(ctx, "good")
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("Missing token", func(t *testing.T) {
		verifier := new(MockVerifier)
		svc := NewAuthService(verifier, ParseAllowlist("owner@example.com"), ConfigStatus{})

		_, err := svc.Authenticate(ctx, "  ")
		assert.ErrorIs(t, err, ErrUnauthenticated)
		verifier.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
	})

	t.Run("Misconfigured", func(t *testing.T) {
		verifier := new(MockVerifier)
		verifier.On("Verify", ctx, "tok").Return(nil, errors.New("invalid_grant"))
		svc := NewAuthService(verifier, nil, ConfigStatus{HasBucket: true})

		_, err := svc.Authenticate(ctx, "tok")
		assert.ErrorIs(t, err, ErrMisconfigured)
		assert.Equal(t, ConfigStatus{HasBucket: true}, svc.Status())
	})
}

func TestAuthService_WhoAmI(t *testing.T) {
	ctx := context.Background()
	verifier := new(MockVerifier)
	verifier.On("Verify", ctx, "tok").Return(&Identity{UID: "u1", Email: "guest@example.com", Name: "Guest"}, nil)
	svc := NewAuthService(verifier, ParseAllowlist("owner@example.com"), ConfigStatus{})

	me, err := svc.WhoAmI(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, me.OK)
	assert.False(t, me.Allowed)
	assert.Equal(t, "u1", me.UID)
	require.NotNil(t, me.Name)
	assert.Equal(t, "Guest", *me.Name)
	assert.Nil(t, me.Picture)
}

func TestJWTVerifier(t *testing.T) {
	ctx := context.Background()
	v := NewJWTVerifier("test-secret")

	token, err := v.Issue(Identity{UID: "u1", Email: "owner@example.com", Name: "Owner"}, time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, &Identity{UID: "u1", Email: "owner@example.com", Name: "Owner"}, id)

	_, err = NewJWTVerifier("other-secret").Verify(ctx, token)
	assert.Error(t, err)

	expired, err := v.Issue(Identity{UID: "u1"}, -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(ctx, expired)
	assert.Error(t, err)

	_, err = v.Verify(ctx, "not-a-token")
	assert.ErrorIs(t, Classify(err), ErrUnauthenticated)
}
