package service

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testConfig(t *testing.T) *Config {
	c := DefaultConfig()
	c.DBPath = filepath.Join(t.TempDir(), "test.db")
	c.Difficulty = 1
	c.BcryptCost = bcrypt.MinCost
	c.MineTimeout.Duration = 10 * time.Second
	c.AdminUser = testAdmin
	c.AdminPassword = testAdminPassword
	return c
}

const (
	testAdmin         = "root"
	testAdminPassword = "rootsecret"
)

func newTestService(t *testing.T, mutate ...func(*Config)) *Service {
	c := testConfig(t)
	for _, m := range mutate {
		m(c)
	}
	s, err := New(c)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

// login registers username with role, has the configured admin approve it
// and returns its session.
func login(t *testing.T, s *Service, username, role string) *Session {
	_, err := s.Register(username, "secret123", role)
	require.NoError(t, err)
	root, err := s.Login(testAdmin, testAdminPassword)
	require.NoError(t, err)
	_, err = s.ApproveUser(root, username)
	require.NoError(t, err)
	sess, err := s.Login(username, "secret123")
	require.NoError(t, err)
	return sess
}

func TestNewInvalidConfig(t *testing.T) {
	c := testConfig(t)
	c.Difficulty = -1
	_, err := New(c)
	require.Error(t, err)
}

func TestServiceClose(t *testing.T) {
	s, err := New(testConfig(t))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestBootstrapAdmin(t *testing.T) {
	c := testConfig(t)
	s, err := New(c)
	require.NoError(t, err)
	sess, err := s.Login(testAdmin, testAdminPassword)
	require.NoError(t, err)
	require.Equal(t, RoleAdmin, sess.Role)
	require.NoError(t, s.Close())

	// a restart on the same store keeps the existing account
	s, err = New(c)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Login(testAdmin, testAdminPassword)
	require.NoError(t, err)
}
