package usecase_test

import (
	"errors"
	"testing"
	"time"

	"cartengine/internal/domain/model"
	"cartengine/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockGuestTokenCodec struct {
	mock.Mock
}

func (m *MockGuestTokenCodec) Mint(guestID string, now time.Time) (string, time.Time, error) {
	args := m.Called(guestID, now)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockGuestTokenCodec) Parse(token string, now time.Time) (string, error) {
	args := m.Called(token, now)
	return args.String(0), args.Error(1)
}

type fixedIDs struct{ id string }

func (f fixedIDs) NewID() string { return f.id }

func TestResolve_UserWins(t *testing.T) {
	codec := new(MockGuestTokenCodec)
	r := usecase.NewIdentityResolver(codec, fixedIDs{"new-guest"}, fixedClock{t: testNow})

	id, err := r.Resolve(usecase.IdentityInput{UserID: 42, GuestToken: "whatever"})
	require.NoError(t, err)
	assert.Equal(t, model.UserOwner(42), id.Owner)
	assert.False(t, id.IssueGuestToken)
	codec.AssertNotCalled(t, "Parse", mock.Anything, mock.Anything)
}

func TestResolve_ValidGuestToken(t *testing.T) {
	codec := new(MockGuestTokenCodec)
	codec.On("Parse", "tok", testNow).Return("guest-1", nil)
	r := usecase.NewIdentityResolver(codec, fixedIDs{"new-guest"}, fixedClock{t: testNow})

	id, err := r.Resolve(usecase.IdentityInput{GuestToken: "tok"})
	require.NoError(t, err)
	assert.Equal(t, model.GuestOwner("guest-1"), id.Owner)
	assert.False(t, id.IssueGuestToken)
	codec.AssertNotCalled(t, "Mint", mock.Anything, mock.Anything)
}

func TestResolve_InvalidTokenMintsNewGuest(t *testing.T) {
	exp := testNow.Add(time.Hour)
	codec := new(MockGuestTokenCodec)
	codec.On("Parse", "expired", testNow).Return("", usecase.ErrInvalidGuestToken)
	codec.On("Mint", "new-guest", testNow).Return("fresh", exp, nil)
	r := usecase.NewIdentityResolver(codec, fixedIDs{"new-guest"}, fixedClock{t: testNow})

	id, err := r.Resolve(usecase.IdentityInput{GuestToken: "expired"})
	require.NoError(t, err)
	assert.Equal(t, model.GuestOwner("new-guest"), id.Owner)
	assert.True(t, id.IssueGuestToken)
	assert.Equal(t, "fresh", id.GuestToken)
	assert.Equal(t, exp, id.ExpiresAt)
	codec.AssertExpectations(t)
}

func TestResolve_NoTokenMintsNewGuest(t *testing.T) {
	codec := new(MockGuestTokenCodec)
	codec.On("Mint", "new-guest", testNow).Return("fresh", testNow, nil)
	r := usecase.NewIdentityResolver(codec, fixedIDs{"new-guest"}, fixedClock{t: testNow})

	id, err := r.Resolve(usecase.IdentityInput{})
	require.NoError(t, err)
	assert.True(t, id.IssueGuestToken)
	codec.AssertNotCalled(t, "Parse", mock.Anything, mock.Anything)
}

func TestResolve_MintFailure(t *testing.T) {
	codec := new(MockGuestTokenCodec)
	codec.On("Mint", "new-guest", testNow).Return("", time.Time{}, errors.New("boom"))
	r := usecase.NewIdentityResolver(codec, fixedIDs{"new-guest"}, fixedClock{t: testNow})

	_, err := r.Resolve(usecase.IdentityInput{})
	assert.Error(t, err)
}

func TestGuestID(t *testing.T) {
	codec := new(MockGuestTokenCodec)
	codec.On("Parse", "good", testNow).Return("guest-1", nil)
	codec.On("Parse", "bad", testNow).Return("", usecase.ErrInvalidGuestToken)
	r := usecase.NewIdentityResolver(codec, fixedIDs{"x"}, fixedClock{t: testNow})

	id, ok := r.GuestID("good")
	assert.True(t, ok)
	assert.Equal(t, "guest-1", id)

	_, ok = r.GuestID("bad")
	assert.False(t, ok)

	_, ok = r.GuestID("")
	assert.False(t, ok)
}
