package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/GTDGit/catalog_api/internal/models"
	"github.com/GTDGit/catalog_api/internal/repository"
	"github.com/GTDGit/catalog_api/internal/utils"
)

// GuardStore persists admin sessions and per-client lockout records.
// Get methods return nil, nil when no record exists.
type GuardStore interface {
	GetSession(ctx context.Context, id string) (*models.AdminSession, error)
	SaveSession(ctx context.Context, s *models.AdminSession, ttl time.Duration) error
	DeleteSession(ctx context.Context, id string) error
	GetLockout(ctx context.Context, client string) (*models.LockoutState, error)
	SaveLockout(ctx context.Context, client string, st *models.LockoutState, ttl time.Duration) error
	ResetLockout(ctx context.Context, client string) error
}

// GuardState is the admin login state of one client.
type GuardState string

const (
	StateUnauthenticated GuardState = "unauthenticated"
	StateAuthenticating  GuardState = "authenticating"
	StateAuthenticated   GuardState = "authenticated"
	StateLockedOut       GuardState = "locked_out"
)

// GuardPolicy configures the password gate.
type GuardPolicy struct {
	SessionTTL    time.Duration
	LockoutWindow time.Duration
	MaxAttempts   int
	// FallbackPassword is accepted when no hash is stored. Empty disables it.
	FallbackPassword string
	// CountdownTick is the LockoutCountdown period.
	CountdownTick time.Duration
}

// LoginResult is returned by a successful Authenticate.
type LoginResult struct {
	Token     string    `json:"token"`
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// GuardStatus describes the state of one client.
type GuardStatus struct {
	State             GuardState `json:"state"`
	Attempts          int        `json:"attempts"`
	RemainingAttempts int        `json:"remainingAttempts"`
	LockoutRemaining  int        `json:"lockoutRemainingSeconds,omitempty"`
	SessionExpiresAt  *time.Time `json:"sessionExpiresAt,omitempty"`
}

// AdminAuthService is the admin session guard: a shared-password check with
// a per-client attempt counter, a lockout window and expiring sessions.
type AdminAuthService struct {
	store     GuardStore
	passwords repository.AdminConfigStore
	jwt       *utils.JWTManager
	policy    GuardPolicy
	now       func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewAdminAuthService constructs an AdminAuthService. now may be nil.
func NewAdminAuthService(store GuardStore, passwords repository.AdminConfigStore, jwt *utils.JWTManager, policy GuardPolicy, now func() time.Time) *AdminAuthService {
	if now == nil {
		now = time.Now
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}
	if policy.SessionTTL <= 0 {
		policy.SessionTTL = 2 * time.Hour
	}
	if policy.LockoutWindow <= 0 {
		policy.LockoutWindow = 15 * time.Minute
	}
	if policy.CountdownTick <= 0 {
		policy.CountdownTick = time.Second
	}
	return &AdminAuthService{
		store:     store,
		passwords: passwords,
		jwt:       jwt,
		policy:    policy,
		now:       now,
		inflight:  make(map[string]struct{}),
	}
}

// ValidatePasswordSyntax requires at least 8 characters with a letter and a digit.
func ValidatePasswordSyntax(password string) error {
	if utf8.RuneCountInString(password) < 8 {
		return fmt.Errorf("%w: password must have at least 8 characters", utils.ErrValidation)
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return fmt.Errorf("%w: password must contain a letter and a digit", utils.ErrValidation)
	}
	return nil
}

// HashPassword returns the bcrypt hash stored in admin_config.
func HashPassword(password string) (string, error) {
	if err := ValidatePasswordSyntax(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Authenticate checks password for client. A locked client is rejected
// without counting the attempt. The failure that reaches MaxAttempts returns
// a *utils.LockoutError.
func (s *AdminAuthService) Authenticate(ctx context.Context, client, password string) (*LoginResult, error) {
	st, remaining, err := s.lockout(ctx, client)
	if err != nil {
		return nil, err
	}
	if remaining > 0 {
		return nil, &utils.LockoutError{Remaining: remaining}
	}
	if err := ValidatePasswordSyntax(password); err != nil {
		return nil, err
	}

	if !s.begin(client) {
		return nil, utils.ErrAuthInProgress
	}
	defer s.end(client)

	ok, err := s.verify(ctx, password)
	if err != nil {
		return nil, err
	}
	now := s.now()

	if !ok {
		attempts := 1
		if st != nil {
			attempts = st.Attempts + 1
		}
		next := &models.LockoutState{Attempts: attempts, Timestamp: now}
		if err := s.store.SaveLockout(ctx, client, next, s.policy.LockoutWindow); err != nil {
			return nil, fmt.Errorf("save lockout: %w", err)
		}
		if attempts >= s.policy.MaxAttempts {
			log.Warn().Str("client", client).Int("attempts", attempts).Msg("Admin login locked out")
			return nil, &utils.LockoutError{Remaining: s.policy.LockoutWindow}
		}
		log.Warn().Str("client", client).Int("attempts", attempts).Msg("Admin login failed")
		return nil, fmt.Errorf("%w: invalid password, %d attempt(s) left", utils.ErrAuth, s.policy.MaxAttempts-attempts)
	}

	if err := s.store.ResetLockout(ctx, client); err != nil {
		log.Warn().Err(err).Str("client", client).Msg("Failed to reset lockout")
	}
	session := &models.AdminSession{
		ID:        uuid.NewString(),
		ClientKey: client,
		Timestamp: now,
		Valid:     true,
	}
	if err := s.store.SaveSession(ctx, session, s.policy.SessionTTL); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	token, err := s.jwt.GenerateJWT(session.ID, client, now, s.policy.SessionTTL)
	if err != nil {
		return nil, err
	}

	log.Info().Str("client", client).Str("session_id", session.ID).Msg("Admin login successful")
	return &LoginResult{
		Token:     token,
		SessionID: session.ID,
		ExpiresAt: session.ExpiresAt(s.policy.SessionTTL),
	}, nil
}

func (s *AdminAuthService) begin(client string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[client]; busy {
		return false
	}
	s.inflight[client] = struct{}{}
	return true
}

func (s *AdminAuthService) end(client string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, client)
}

func (s *AdminAuthService) authenticating(client string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, busy := s.inflight[client]
	return busy
}

// verify checks password against the stored bcrypt hash, or the fallback
// secret when no hash is stored.
func (s *AdminAuthService) verify(ctx context.Context, password string) (bool, error) {
	hash, err := s.passwords.PasswordHash(ctx)
	if err != nil {
		return false, err
	}
	if hash != "" {
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, fmt.Errorf("stored admin password hash is unusable: %w", err)
		}
	}
	if s.policy.FallbackPassword == "" {
		log.Warn().Msg("No admin password configured; rejecting login")
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(s.policy.FallbackPassword)) == 1, nil
}

// lockout loads the client's record and returns the time left until it
// unlocks. Records whose window has elapsed are reset.
func (s *AdminAuthService) lockout(ctx context.Context, client string) (*models.LockoutState, time.Duration, error) {
	st, err := s.store.GetLockout(ctx, client)
	if err != nil {
		return nil, 0, fmt.Errorf("load lockout: %w", err)
	}
	if st == nil {
		return nil, 0, nil
	}
	remaining := st.Timestamp.Add(s.policy.LockoutWindow).Sub(s.now())
	if remaining <= 0 {
		if err := s.store.ResetLockout(ctx, client); err != nil {
			return nil, 0, fmt.Errorf("reset lockout: %w", err)
		}
		return nil, 0, nil
	}
	if st.Attempts < s.policy.MaxAttempts {
		return st, 0, nil
	}
	return st, remaining, nil
}

// CheckSession validates a bearer token and the session it names. Sessions
// expire SessionTTL after login; expired sessions are deleted.
func (s *AdminAuthService) CheckSession(ctx context.Context, token string) (*models.AdminSession, error) {
	claims, err := s.jwt.ValidateJWT(token)
	if err != nil {
		return nil, err
	}
	return s.session(ctx, claims.SessionID)
}

func (s *AdminAuthService) session(ctx context.Context, id string) (*models.AdminSession, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil || !sess.Valid {
		return nil, utils.ErrSessionExpired
	}
	if !s.now().Before(sess.ExpiresAt(s.policy.SessionTTL)) {
		if err := s.store.DeleteSession(ctx, id); err != nil {
			log.Warn().Err(err).Str("session_id", id).Msg("Failed to delete expired session")
		}
		return nil, utils.ErrSessionExpired
	}
	return sess, nil
}

// Logout deletes the session. Logging out twice succeeds.
func (s *AdminAuthService) Logout(ctx context.Context, sessionID string) error {
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	log.Info().Str("session_id", sessionID).Msg("Admin logged out")
	return nil
}

// Status reports the guard state of client. token may be empty.
func (s *AdminAuthService) Status(ctx context.Context, client, token string) (*GuardStatus, error) {
	st, remaining, err := s.lockout(ctx, client)
	if err != nil {
		return nil, err
	}
	status := &GuardStatus{State: StateUnauthenticated, RemainingAttempts: s.policy.MaxAttempts}
	if st != nil {
		status.Attempts = st.Attempts
		status.RemainingAttempts = max(s.policy.MaxAttempts-st.Attempts, 0)
	}

	switch {
	case s.authenticating(client):
		status.State = StateAuthenticating
	case remaining > 0:
		status.State = StateLockedOut
		status.LockoutRemaining = int((remaining + time.Second - 1) / time.Second)
	case token != "":
		if sess, err := s.CheckSession(ctx, token); err == nil {
			exp := sess.ExpiresAt(s.policy.SessionTTL)
			status.State = StateAuthenticated
			status.SessionExpiresAt = &exp
		}
	}
	return status, nil
}

// LockoutCountdown emits the time left on client's lockout every tick until
// it reaches zero, at which point the record is reset and the channel is
// closed. Cancelling ctx stops it early. A client that is not locked out
// gets a single zero.
func (s *AdminAuthService) LockoutCountdown(ctx context.Context, client string) <-chan time.Duration {
	out := make(chan time.Duration, 1)

	go func() {
		defer close(out)
		ticker := time.NewTicker(s.policy.CountdownTick)
		defer ticker.Stop()

		for {
			_, remaining, err := s.lockout(ctx, client)
			if err != nil {
				log.Warn().Err(err).Str("client", client).Msg("Lockout countdown stopped")
				return
			}
			select {
			case out <- max(remaining, 0):
			case <-ctx.Done():
				return
			}
			if remaining <= 0 {
				return
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
