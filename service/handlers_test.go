package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	watercompany "github.com/favour-abass/waterCompanyBackend"
	bc "github.com/favour-abass/waterCompanyBackend/blockchain"
	"github.com/favour-abass/waterCompanyBackend/mining"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

type testServer struct {
	t   *testing.T
	srv *httptest.Server
}

func newTestServer(t *testing.T) (*Service, *testServer) {
	s := newTestService(t)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, &testServer{t: t, srv: srv}
}

// call sends body as JSON and decodes the reply into reply when not nil.
func (ts *testServer) call(method, path, token string, body, reply interface{}) int {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	require.NoError(ts.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.srv.Client().Do(req)
	require.NoError(ts.t, err)
	defer resp.Body.Close()
	require.Equal(ts.t, "application/json", resp.Header.Get("Content-Type"))
	if reply != nil {
		require.NoError(ts.t, json.NewDecoder(resp.Body).Decode(reply))
	}
	return resp.StatusCode
}

func (ts *testServer) token(username, password string) string {
	reply := &watercompany.LoginReply{}
	code := ts.call(http.MethodPost, "/auth/login", "", &watercompany.LoginRequest{
		Username: username, Password: password,
	}, reply)
	require.Equal(ts.t, http.StatusOK, code)
	return reply.Token
}

// login registers username, approves it as the configured admin and logs it
// in.
func (ts *testServer) login(username, role string) string {
	code := ts.call(http.MethodPost, "/auth/register", "", &watercompany.RegisterRequest{
		Username: username, Password: "secret123", Role: role,
	}, nil)
	require.Equal(ts.t, http.StatusCreated, code)
	root := ts.token(testAdmin, testAdminPassword)
	code = ts.call(http.MethodPatch, "/auth/users/"+username+"/approve", root, nil, nil)
	require.Equal(ts.t, http.StatusOK, code)
	return ts.token(username, "secret123")
}

func TestHandlersAuth(t *testing.T) {
	_, ts := newTestServer(t)
	ts.login("alice", RoleAdmin)

	errReply := &watercompany.ErrorReply{}
	code := ts.call(http.MethodPost, "/auth/register", "", &watercompany.RegisterRequest{
		Username: "alice", Password: "secret123", Role: RoleAdmin,
	}, errReply)
	require.Equal(t, http.StatusConflict, code)
	require.NotEmpty(t, errReply.Error)

	code = ts.call(http.MethodPost, "/auth/register", "", &watercompany.RegisterRequest{
		Username: "bob", Password: "secret123", Role: "DRIVER",
	}, nil)
	require.Equal(t, http.StatusBadRequest, code)

	code = ts.call(http.MethodPost, "/auth/login", "", &watercompany.LoginRequest{
		Username: "alice", Password: "nope",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, code)

	code = ts.call(http.MethodPost, "/packs", "", nil, nil)
	require.Equal(t, http.StatusUnauthorized, code)
	code = ts.call(http.MethodPost, "/packs", "bogus", nil, nil)
	require.Equal(t, http.StatusUnauthorized, code)
}

func TestHandlersApproval(t *testing.T) {
	_, ts := newTestServer(t)
	inspector := ts.login("ivan", RoleInspector)

	registered := &watercompany.UserReply{}
	code := ts.call(http.MethodPost, "/auth/register", "", &watercompany.RegisterRequest{
		Username: "bob", Password: "secret123", Role: RoleAdmin,
	}, registered)
	require.Equal(t, http.StatusCreated, code)
	require.False(t, registered.Approved)

	login := &watercompany.LoginRequest{Username: "bob", Password: "secret123"}
	code = ts.call(http.MethodPost, "/auth/login", "", login, nil)
	require.Equal(t, http.StatusForbidden, code)

	code = ts.call(http.MethodPatch, "/auth/users/bob/approve", inspector, nil, nil)
	require.Equal(t, http.StatusForbidden, code)
	code = ts.call(http.MethodPatch, "/auth/users/bob/approve", "", nil, nil)
	require.Equal(t, http.StatusUnauthorized, code)

	root := ts.token(testAdmin, testAdminPassword)
	code = ts.call(http.MethodPatch, "/auth/users/nobody/approve", root, nil, nil)
	require.Equal(t, http.StatusNotFound, code)
	approved := &watercompany.UserReply{}
	code = ts.call(http.MethodPatch, "/auth/users/bob/approve", root, nil, approved)
	require.Equal(t, http.StatusOK, code)
	require.True(t, approved.Approved)
	require.Equal(t, RoleAdmin, approved.Role)

	code = ts.call(http.MethodPost, "/auth/login", "", login, nil)
	require.Equal(t, http.StatusOK, code)
}

func TestHandlersPackFlow(t *testing.T) {
	_, ts := newTestServer(t)
	admin := ts.login("alice", RoleAdmin)
	inspector := ts.login("ivan", RoleInspector)

	code := ts.call(http.MethodPost, "/packs", inspector, nil, nil)
	require.Equal(t, http.StatusForbidden, code)

	created := &watercompany.PackReply{}
	code = ts.call(http.MethodPost, "/packs", admin, nil, created)
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, StatusCreated, created.Status)
	require.NotNil(t, created.Blockchain)
	serial := created.SerialCode

	code = ts.call(http.MethodPatch, "/packs/"+serial+"/approve", admin, nil, nil)
	require.Equal(t, http.StatusConflict, code)

	reply := &watercompany.PackReply{}
	code = ts.call(http.MethodPatch, "/packs/"+serial+"/test", inspector, nil, reply)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, StatusInspector, reply.Status)

	code = ts.call(http.MethodPatch, "/packs/"+serial+"/reject", admin, nil, nil)
	require.Equal(t, http.StatusBadRequest, code)
	code = ts.call(http.MethodPatch, "/packs/"+serial+"/reject", admin,
		&watercompany.RejectRequest{Reason: "MOLDY"}, nil)
	require.Equal(t, http.StatusBadRequest, code)
	code = ts.call(http.MethodPatch, "/packs/"+serial+"/reject", admin,
		&watercompany.RejectRequest{Reason: ReasonExpired}, reply)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, StatusRejectedExpired, reply.Status)

	code = ts.call(http.MethodPatch, "/packs/WAT-missing/test", admin, nil, nil)
	require.Equal(t, http.StatusNotFound, code)

	verify := &watercompany.VerifyReply{}
	code = ts.call(http.MethodGet, "/packs/verify/"+serial, "", nil, verify)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, StatusRejectedExpired, verify.Status)
	require.Equal(t, ReasonExpired, verify.RejectionReason)
	require.Len(t, verify.History, 3)

	code = ts.call(http.MethodGet, "/packs/verify/WAT-missing", "", nil, nil)
	require.Equal(t, http.StatusNotFound, code)
}

func TestHandlersChain(t *testing.T) {
	s, ts := newTestServer(t)
	admin := ts.login("alice", RoleAdmin)
	code := ts.call(http.MethodPost, "/packs", admin, nil, nil)
	require.Equal(t, http.StatusCreated, code)

	chain := &watercompany.ChainReply{}
	code = ts.call(http.MethodGet, "/chain", "", nil, chain)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 2, chain.Length)
	require.Len(t, chain.Blocks, 2)
	require.Equal(t, chain.Blocks[0].Hash, chain.Blocks[1].PreviousHash)
	require.NotEmpty(t, chain.Blocks[1].Sealer)
	require.Len(t, chain.Blocks[1].Transactions, 1)

	stats := &watercompany.StatsReply{}
	code = ts.call(http.MethodGet, "/packs/stats", "", nil, stats)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 1, stats.TotalWaterPacks)
	require.Equal(t, DEFAULT_NETWORK, stats.BlockchainNetwork)

	pending := &watercompany.PendingReply{}
	code = ts.call(http.MethodGet, "/chain/pending", "", nil, pending)
	require.Equal(t, http.StatusOK, code)
	require.Empty(t, pending.Transactions)

	valid := &watercompany.ValidateReply{}
	code = ts.call(http.MethodGet, "/chain/validate", "", nil, valid)
	require.Equal(t, http.StatusOK, code)
	require.True(t, valid.Valid)

	serial := chain.Blocks[1].Transactions[0].Subject
	s.chain = corruptLedger{s.chain}
	code = ts.call(http.MethodGet, "/chain/validate", "", nil, valid)
	require.Equal(t, http.StatusInternalServerError, code)
	require.False(t, valid.Valid)

	errReply := &watercompany.ErrorReply{}
	code = ts.call(http.MethodGet, "/packs/verify/"+serial, "", nil, errReply)
	require.Equal(t, http.StatusInternalServerError, code)
	require.Contains(t, errReply.Error, bc.ErrIntegrity.Error())
}

func TestStatusOf(t *testing.T) {
	wrap := func(err error) error { return xerrors.Errorf("pack WAT-1: %w", err) }
	for err, code := range map[error]int{
		ErrBadRequest:            http.StatusBadRequest,
		ErrInvalidReason:         http.StatusBadRequest,
		bc.ErrEmptySubject:       http.StatusBadRequest,
		ErrUnauthorized:          http.StatusUnauthorized,
		ErrForbidden:             http.StatusForbidden,
		ErrNotFound:              http.StatusNotFound,
		ErrInvalidTransition:     http.StatusConflict,
		context.DeadlineExceeded: http.StatusServiceUnavailable,
		mining.ErrStopped:        http.StatusServiceUnavailable,
		bc.ErrIntegrity:          http.StatusInternalServerError,
	} {
		require.Equal(t, code, statusOf(wrap(err)), err.Error())
	}
}
