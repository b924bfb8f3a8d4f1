package identity

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Load() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *mockStore) Save(id string) error {
	return m.Called(id).Error(0)
}

func TestFileStoreIdentityIsDurable(t *testing.T) {
	store := &FileStore{Path: filepath.Join(t.TempDir(), "nested", "device-id")}

	first, degraded := NewProvider(store).GetOrCreateIdentity()
	assert.False(t, degraded)
	_, err := uuid.Parse(first)
	assert.NoError(t, err)

	// a new process reading the same installation gets the same identity
	second, degraded := NewProvider(store).GetOrCreateIdentity()
	assert.False(t, degraded)
	assert.Equal(t, first, second)
}

func TestProviderCachesIdentity(t *testing.T) {
	store := new(mockStore)
	store.On("Load").Return("", ErrNoIdentity).Once()
	store.On("Save", mock.AnythingOfType("string")).Return(nil).Once()

	p := NewProvider(store)
	a, _ := p.GetOrCreateIdentity()
	b, _ := p.GetOrCreateIdentity()

	assert.Equal(t, a, b)
	store.AssertExpectations(t)
}

func TestProviderDegradesWhenStoreFails(t *testing.T) {
	store := new(mockStore)
	store.On("Load").Return("", ErrNoIdentity)
	store.On("Save", mock.Anything).Return(errors.New("disk full"))

	p := NewProvider(store)
	a, degraded := p.GetOrCreateIdentity()
	assert.True(t, degraded)
	assert.NotEmpty(t, a)

	// stable for the rest of the process
	b, degraded := p.GetOrCreateIdentity()
	assert.True(t, degraded)
	assert.Equal(t, a, b)
}

func TestProviderDegradesWhenStoreUnreadable(t *testing.T) {
	store := new(mockStore)
	store.On("Load").Return("", errors.New("permission denied"))

	id, degraded := NewProvider(store).GetOrCreateIdentity()
	assert.True(t, degraded)
	assert.NotEmpty(t, id)
	store.AssertNotCalled(t, "Save", mock.Anything)
}

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	now := time.Now()

	token, err := m.Issue("device-1", now)
	require.NoError(t, err)

	id, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "device-1", id)
}

func TestTokenErrors(t *testing.T) {
	m := NewTokenManager("secret", time.Minute)

	expired, err := m.Issue("device-1", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = m.Verify(expired)
	assert.ErrorIs(t, err, ErrExpiredToken)

	forged, err := NewTokenManager("other", time.Minute).Issue("device-1", time.Now())
	require.NoError(t, err)
	_, err = m.Verify(forged)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = m.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrCorruptedToken)
}
