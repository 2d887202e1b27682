package auth

import (
	"context"
	"errors"
	"time"

	"github.com/dkoleva/inkwell/pkg"

	log "github.com/sirupsen/logrus"
)

const DefaultTTL = 24 * time.Hour

var (
	ErrWrongUsername = errors.New("wrong username")
	ErrWrongPassword = errors.New("wrong password")
)

// Admin is the one and only account; the password hash comes from the
// environment, never from the config file
type Admin struct {
	Username     string
	PasswordHash string
}

// Service issues, validates and revokes admin session tokens. Token
// lifetime is fixed at issue, there is no sliding expiry; expired entries
// are evicted lazily on check and by the periodic ScanAndClean sweep.
type Service struct {
	admin *Admin
	ttl   time.Duration
	store SessionStore
	// ability to inject random string generator func for tokens (for unit and dev testing)
	RandStringFunc func(s int) (string, error)
	// injectable clock
	NowFunc func() time.Time
}

func NewService(admin *Admin, ttl time.Duration, store SessionStore) *Service {
	return &Service{
		admin:          admin,
		ttl:            ttl,
		store:          store,
		RandStringFunc: pkg.GenerateRandomString,
		NowFunc:        time.Now,
	}
}

// Login checks the credentials against the configured admin and, on
// success, stores and returns a fresh session token. The bcrypt
// comparison runs before the username check so both failure paths cost
// roughly the same.
func (as *Service) Login(ctx context.Context, username, password string) (string, error) {
	if !pkg.CheckPasswordHash(password, as.admin.PasswordHash) {
		return "", ErrWrongPassword
	}
	if username != as.admin.Username {
		return "", ErrWrongUsername
	}

	token, err := as.RandStringFunc(35)
	if err != nil {
		return "", err
	}

	expiresAt := as.NowFunc().Add(as.ttl)
	if err := as.store.Create(ctx, token, expiresAt); err != nil {
		return "", err
	}

	return token, nil
}

// Logout drops the session unconditionally; reports whether it existed.
func (as *Service) Logout(ctx context.Context, token string) (bool, error) {
	return as.store.Delete(ctx, token)
}

// IsLogged reports whether the token belongs to a live session. A session
// checked at or past its expiry is dead and gets evicted on the spot.
func (as *Service) IsLogged(ctx context.Context, token string) (bool, error) {
	expiresAt, err := as.store.ExpiresAt(ctx, token)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}

	if !as.NowFunc().Before(expiresAt) {
		if _, err := as.store.Delete(ctx, token); err != nil {
			log.Errorf("auth service, evict expired session: %s", err)
		}
		return false, nil
	}

	return true, nil
}

// ScanAndClean will run through all sessions, check the expiry, and clean the dead ones
func (as *Service) ScanAndClean(ctx context.Context) {
	tokens, err := as.store.Tokens(ctx)
	if err != nil {
		log.Errorf("!!! auth service, scan and clean, get sessions: %s", err)
		return
	}

	if len(tokens) == 0 {
		log.Debugln("=> auth service, scan and clean abort, no sessions")
		return
	}

	log.Debugf("=> auth service, scan and clean [%d sessions] start ...", len(tokens))
	now := as.NowFunc()
	var toRemove []string
	for _, token := range tokens {
		expiresAt, err := as.store.ExpiresAt(ctx, token)
		if err != nil {
			log.Errorf("=> auth service, scan and clean token %s: %s", token, err)
			continue
		}
		if !now.Before(expiresAt) {
			toRemove = append(toRemove, token)
		}
	}

	for _, token := range toRemove {
		if _, err := as.store.Delete(ctx, token); err != nil {
			log.Errorf("=> auth service, clean token %s: %s", token, err)
		}
	}

	log.Debugf("=> auth service, scan and clean done, %d sessions removed", len(toRemove))
}
