package service

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func newTestDB(t *testing.T) *PackDB {
	db, err := OpenPackDB(filepath.Join(t.TempDir(), "packs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPackDB(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetPack("WAT-1")
	require.True(t, xerrors.Is(err, ErrNotFound))

	p := &Pack{Serial: "WAT-1", Status: StatusCreated, CreatedBy: "alice", BlockIndex: 1,
		BlockHash: []byte{1, 2, 3}}
	require.NoError(t, db.CreatePack(p))
	err = db.CreatePack(p)
	require.True(t, xerrors.Is(err, ErrExists))

	got, err := db.GetPack("WAT-1")
	require.NoError(t, err)
	require.Equal(t, p, got)

	updated, err := db.UpdatePack("WAT-1", func(p *Pack) error {
		p.Status = StatusInspector
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, StatusInspector, updated.Status)

	// a failing update writes nothing
	boom := xerrors.New("boom")
	_, err = db.UpdatePack("WAT-1", func(p *Pack) error {
		p.Status = StatusSold
		return boom
	})
	require.True(t, xerrors.Is(err, boom))
	got, err = db.GetPack("WAT-1")
	require.NoError(t, err)
	require.Equal(t, StatusInspector, got.Status)

	_, err = db.UpdatePack("WAT-2", func(p *Pack) error { return nil })
	require.True(t, xerrors.Is(err, ErrNotFound))
}

func TestPackDBStats(t *testing.T) {
	db := newTestDB(t)
	stats, err := db.PackStats()
	require.NoError(t, err)
	require.Empty(t, stats)

	require.NoError(t, db.CreatePack(&Pack{Serial: "WAT-1", Status: StatusCreated}))
	require.NoError(t, db.CreatePack(&Pack{Serial: "WAT-2", Status: StatusCreated}))
	require.NoError(t, db.CreatePack(&Pack{Serial: "WAT-3", Status: StatusSold}))
	stats, err = db.PackStats()
	require.NoError(t, err)
	require.Equal(t, map[string]int{StatusCreated: 2, StatusSold: 1}, stats)
}

func TestPackDBUsers(t *testing.T) {
	db := newTestDB(t)
	u := &User{Username: "alice", PasswordHash: []byte("hash"), Role: RoleAdmin, CreatedAt: 42}
	require.NoError(t, db.CreateUser(u))
	require.True(t, xerrors.Is(db.CreateUser(u), ErrExists))

	got, err := db.GetUser("alice")
	require.NoError(t, err)
	require.Equal(t, u, got)

	_, err = db.GetUser("bob")
	require.True(t, xerrors.Is(err, ErrNotFound))

	approved, err := db.UpdateUser("alice", func(u *User) error {
		u.Approved = true
		return nil
	})
	require.NoError(t, err)
	require.True(t, approved.Approved)
	got, err = db.GetUser("alice")
	require.NoError(t, err)
	require.True(t, got.Approved)

	_, err = db.UpdateUser("bob", func(u *User) error { return nil })
	require.True(t, xerrors.Is(err, ErrNotFound))
}
