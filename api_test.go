package watercompany_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	watercompany "github.com/favour-abass/waterCompanyBackend"
	"github.com/favour-abass/waterCompanyBackend/service"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/xerrors"
)

func newClient(t *testing.T) *watercompany.Client {
	c := service.DefaultConfig()
	c.DBPath = filepath.Join(t.TempDir(), "client.db")
	c.Difficulty = 1
	c.BcryptCost = bcrypt.MinCost
	c.MineTimeout.Duration = 10 * time.Second
	c.AdminUser = "root"
	c.AdminPassword = "rootsecret"
	s, err := service.New(c)
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		require.NoError(t, s.Close())
	})
	return watercompany.NewClient(srv.URL + "/")
}

func TestClient(t *testing.T) {
	ctx := context.Background()
	cl := newClient(t)

	reg, err := cl.Register(ctx, "alice", "secret123", service.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, service.RoleAdmin, reg.Role)

	_, err = cl.CreatePack(ctx)
	var apiErr *watercompany.APIError
	require.True(t, xerrors.As(err, &apiErr))
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	_, err = cl.Login(ctx, "alice", "secret123")
	require.True(t, xerrors.As(err, &apiErr))
	require.Equal(t, http.StatusForbidden, apiErr.StatusCode)

	_, err = cl.Login(ctx, "root", "rootsecret")
	require.NoError(t, err)
	approved, err := cl.ApproveUser(ctx, "alice")
	require.NoError(t, err)
	require.True(t, approved.Approved)

	login, err := cl.Login(ctx, "alice", "secret123")
	require.NoError(t, err)
	require.Equal(t, login.Token, cl.Token)

	created, err := cl.CreatePack(ctx)
	require.NoError(t, err)
	serial := created.SerialCode

	for _, step := range []func(context.Context, string) (*watercompany.PackReply, error){
		cl.Test, cl.Approve, cl.Distribute, cl.Sell,
	} {
		_, err = step(ctx, serial)
		require.NoError(t, err)
	}
	_, err = cl.Sell(ctx, serial)
	require.True(t, xerrors.As(err, &apiErr))
	require.Equal(t, http.StatusConflict, apiErr.StatusCode)

	verify, err := cl.Verify(ctx, serial)
	require.NoError(t, err)
	require.Equal(t, service.StatusSold, verify.Status)
	require.Len(t, verify.History, 5)

	chain, err := cl.Chain(ctx)
	require.NoError(t, err)
	require.Equal(t, 6, chain.Length)

	valid, err := cl.Validate(ctx)
	require.NoError(t, err)
	require.True(t, valid.Valid)

	stats, err := cl.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.ByStatus[service.StatusSold])

	pending, err := cl.Pending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending.Transactions)
}

func TestClientReject(t *testing.T) {
	ctx := context.Background()
	cl := newClient(t)
	_, err := cl.Login(ctx, "root", "rootsecret")
	require.NoError(t, err)

	created, err := cl.CreatePack(ctx)
	require.NoError(t, err)
	_, err = cl.Test(ctx, created.SerialCode)
	require.NoError(t, err)
	reply, err := cl.Reject(ctx, created.SerialCode, service.ReasonContaminated)
	require.NoError(t, err)
	require.Equal(t, service.StatusRejectedContaminated, reply.Status)

	_, err = cl.Verify(ctx, "WAT-missing")
	var apiErr *watercompany.APIError
	require.True(t, xerrors.As(err, &apiErr))
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}
