package service

import (
	"strings"
	"sync"
	"time"

	uuid "github.com/satori/go.uuid"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/xerrors"
)

var (
	// ErrBadRequest marks invalid input from the caller.
	ErrBadRequest = xerrors.New("bad request")
	// ErrUnauthorized is returned for missing or unknown credentials.
	ErrUnauthorized = xerrors.New("unauthorized")
	// ErrForbidden is returned when the caller's role is not allowed.
	ErrForbidden = xerrors.New("forbidden")
)

// Session is a logged in user.
type Session struct {
	Token     string
	Username  string
	Role      string
	ExpiresAt time.Time
}

// sessions keeps login tokens in memory; a restart logs everybody out.
type sessions struct {
	sync.Mutex
	ttl    time.Duration
	tokens map[string]*Session
	now    func() time.Time
}

func newSessions(ttl time.Duration) *sessions {
	return &sessions{
		ttl:    ttl,
		tokens: make(map[string]*Session),
		now:    time.Now,
	}
}

func (s *sessions) create(username, role string) *Session {
	s.Lock()
	defer s.Unlock()
	sess := &Session{
		Token:     uuid.NewV4().String(),
		Username:  username,
		Role:      role,
		ExpiresAt: s.now().Add(s.ttl),
	}
	s.tokens[sess.Token] = sess
	return sess
}

func (s *sessions) lookup(token string) (*Session, error) {
	s.Lock()
	defer s.Unlock()
	sess, ok := s.tokens[token]
	if !ok {
		return nil, xerrors.Errorf("unknown token: %w", ErrUnauthorized)
	}
	if s.ttl > 0 && !s.now().Before(sess.ExpiresAt) {
		delete(s.tokens, token)
		return nil, xerrors.Errorf("token expired: %w", ErrUnauthorized)
	}
	c := *sess
	return &c, nil
}

func normalizeRole(role string) (string, error) {
	role = strings.ToUpper(strings.TrimSpace(role))
	switch role {
	case RoleAdmin, RoleInspector:
		return role, nil
	}
	return "", xerrors.Errorf("unknown role %q: %w", role, ErrBadRequest)
}

// Register creates a user with a bcrypt hash of its password. The account
// can not log in before an admin approves it.
func (s *Service) Register(username, password, role string) (*User, error) {
	u, err := s.createUser(username, password, role, false)
	if err != nil {
		return nil, err
	}
	log.Lvlf2("Registered %s as %s, awaiting approval", u.Username, u.Role)
	return u, nil
}

func (s *Service) createUser(username, password, role string, approved bool) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, xerrors.Errorf("username is empty: %w", ErrBadRequest)
	}
	if len(password) < MIN_PASSWORD_LENGTH {
		return nil, xerrors.Errorf("password shorter than %d characters: %w",
			MIN_PASSWORD_LENGTH, ErrBadRequest)
	}
	role, err := normalizeRole(role)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if err != nil {
		return nil, xerrors.Errorf("hashing password: %w", err)
	}
	u := &User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now().UnixNano(),
		Approved:     approved,
	}
	if err := s.db.CreateUser(u); err != nil {
		return nil, err
	}
	return u, nil
}

// bootstrapAdmin creates the configured admin account unless it exists.
func (s *Service) bootstrapAdmin() error {
	if s.config.AdminUser == "" {
		return nil
	}
	_, err := s.createUser(s.config.AdminUser, s.config.AdminPassword, RoleAdmin, true)
	switch {
	case err == nil:
		log.Info("Created admin account", s.config.AdminUser)
	case xerrors.Is(err, ErrExists):
		log.Lvl2("Admin account", s.config.AdminUser, "already exists")
	default:
		return xerrors.Errorf("creating admin account: %w", err)
	}
	return nil
}

// ApproveUser lets username log in. Only admins may approve accounts.
func (s *Service) ApproveUser(sess *Session, username string) (*User, error) {
	if err := requireRole(sess, RoleAdmin); err != nil {
		return nil, err
	}
	u, err := s.db.UpdateUser(strings.TrimSpace(username), func(u *User) error {
		u.Approved = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Lvlf2("%s approved %s", sess.Username, u.Username)
	return u, nil
}

// Login checks the credentials and opens a session for an approved user.
func (s *Service) Login(username, password string) (*Session, error) {
	u, err := s.db.GetUser(strings.TrimSpace(username))
	if xerrors.Is(err, ErrNotFound) {
		return nil, xerrors.Errorf("invalid credentials: %w", ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) != nil {
		return nil, xerrors.Errorf("invalid credentials: %w", ErrUnauthorized)
	}
	if !u.Approved {
		return nil, xerrors.Errorf("account not approved yet: %w", ErrForbidden)
	}
	sess := s.sessions.create(u.Username, u.Role)
	log.Lvlf2("%s logged in", u.Username)
	return sess, nil
}

// Authenticate resolves a bearer token to its session.
func (s *Service) Authenticate(token string) (*Session, error) {
	if token == "" {
		return nil, xerrors.Errorf("missing token: %w", ErrUnauthorized)
	}
	return s.sessions.lookup(token)
}

func requireRole(sess *Session, roles ...string) error {
	for _, r := range roles {
		if sess.Role == r {
			return nil
		}
	}
	return xerrors.Errorf("%s may not do this: %w", sess.Role, ErrForbidden)
}
