package service

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	watercompany "github.com/favour-abass/waterCompanyBackend"
	bc "github.com/favour-abass/waterCompanyBackend/blockchain"
	"github.com/favour-abass/waterCompanyBackend/mining"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

type authHandler func(w http.ResponseWriter, r *http.Request, sess *Session)

// Handler returns the HTTP API of the service.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("PATCH /auth/users/{username}/approve", s.authenticated(s.handleApproveUser))

	mux.HandleFunc("POST /packs", s.authenticated(s.handleCreatePack))
	mux.HandleFunc("PATCH /packs/{serial}/test", s.authenticated(s.handleTransition(s.Test)))
	mux.HandleFunc("PATCH /packs/{serial}/approve", s.authenticated(s.handleTransition(s.Approve)))
	mux.HandleFunc("PATCH /packs/{serial}/reject", s.authenticated(s.handleReject))
	mux.HandleFunc("PATCH /packs/{serial}/distribute", s.authenticated(s.handleTransition(s.Distribute)))
	mux.HandleFunc("PATCH /packs/{serial}/sell", s.authenticated(s.handleTransition(s.Sell)))
	mux.HandleFunc("GET /packs/verify/{serial}", s.handleVerify)
	mux.HandleFunc("GET /packs/stats", s.handleStats)

	mux.HandleFunc("GET /chain", s.handleChain)
	mux.HandleFunc("GET /chain/validate", s.handleValidate)
	mux.HandleFunc("GET /chain/pending", s.handlePending)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("writing reply:", err)
	}
}

func statusOf(err error) int {
	switch {
	case xerrors.Is(err, ErrBadRequest), xerrors.Is(err, ErrInvalidReason),
		xerrors.Is(err, bc.ErrEmptySubject):
		return http.StatusBadRequest
	case xerrors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case xerrors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case xerrors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case xerrors.Is(err, ErrExists), xerrors.Is(err, ErrInvalidTransition):
		return http.StatusConflict
	case xerrors.Is(err, context.Canceled), xerrors.Is(err, context.DeadlineExceeded),
		xerrors.Is(err, mining.ErrStopped):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log.Error(err)
	} else {
		log.Lvl3("request failed:", err)
	}
	writeJSON(w, status, &watercompany.ErrorReply{Error: err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MAX_REQUEST_BODY_SIZE)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return xerrors.Errorf("invalid body %v: %w", err, ErrBadRequest)
	}
	return nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func (s *Service) authenticated(next authHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.Authenticate(bearerToken(r))
		if err != nil {
			writeError(w, err)
			return
		}
		next(w, r, sess)
	}
}

func (s *Service) handleRegister(w http.ResponseWriter, r *http.Request) {
	req := &watercompany.RegisterRequest{}
	if err := decode(w, r, req); err != nil {
		writeError(w, err)
		return
	}
	u, err := s.Register(req.Username, req.Password, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, userReply("Registration successful. Await admin approval.", u))
}

func userReply(message string, u *User) *watercompany.UserReply {
	return &watercompany.UserReply{
		Message:  message,
		Username: u.Username,
		Role:     u.Role,
		Approved: u.Approved,
	}
}

func (s *Service) handleApproveUser(w http.ResponseWriter, r *http.Request, sess *Session) {
	u, err := s.ApproveUser(sess, r.PathValue("username"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userReply("User approved", u))
}

func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	req := &watercompany.LoginRequest{}
	if err := decode(w, r, req); err != nil {
		writeError(w, err)
		return
	}
	sess, err := s.Login(req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &watercompany.LoginReply{
		Token:     sess.Token,
		Role:      sess.Role,
		ExpiresAt: sess.ExpiresAt,
	})
}

func (s *Service) handleCreatePack(w http.ResponseWriter, r *http.Request, sess *Session) {
	reply, err := s.CreatePack(r.Context(), sess)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reply)
}

type transitionFunc func(ctx context.Context, sess *Session, serial string) (*watercompany.PackReply, error)

func (s *Service) handleTransition(fn transitionFunc) authHandler {
	return func(w http.ResponseWriter, r *http.Request, sess *Session) {
		reply, err := fn(r.Context(), sess, r.PathValue("serial"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reply)
	}
}

func (s *Service) handleReject(w http.ResponseWriter, r *http.Request, sess *Session) {
	req := &watercompany.RejectRequest{}
	if err := decode(w, r, req); err != nil {
		writeError(w, err)
		return
	}
	reply, err := s.Reject(r.Context(), sess, r.PathValue("serial"), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Service) handleVerify(w http.ResponseWriter, r *http.Request) {
	reply, err := s.Verify(r.PathValue("serial"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	reply, err := s.Stats()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Service) handleChain(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ChainInfo())
}

func (s *Service) handleValidate(w http.ResponseWriter, r *http.Request) {
	reply := s.ValidateChain()
	status := http.StatusOK
	if !reply.Valid {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, reply)
}

func (s *Service) handlePending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Pending())
}
