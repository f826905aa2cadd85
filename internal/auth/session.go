package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const CookieName = "insights_session"

var ErrNoSession = errors.New("no session")

// Session is the state of one logged-in browser. It is created by Login,
// travels in a signed cookie and is dropped by Logout.
type Session struct {
	ID        string
	Username  string
	Page      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type claims struct {
	Page string `json:"page,omitempty"`
	jwt.RegisteredClaims
}

// SessionManager issues and validates session cookies.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewSessionManager signs with secret. An empty secret gets a random one,
// which logs everybody out on restart.
func NewSessionManager(secret string, ttl time.Duration, secure bool) (*SessionManager, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
	}
	return &SessionManager{secret: key, ttl: ttl, secure: secure, now: time.Now}, nil
}

// Issue starts a new session for username.
func (m *SessionManager) Issue(username, page string) (*Session, string, error) {
	now := m.now().Truncate(time.Second)
	s := &Session{
		ID:        uuid.NewString(),
		Username:  username,
		Page:      page,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}
	token, err := m.sign(s)
	if err != nil {
		return nil, "", err
	}
	return s, token, nil
}

// Navigate records the page the session is on, keeping its id and expiry.
func (m *SessionManager) Navigate(s *Session, page string) (*Session, string, error) {
	next := *s
	next.Page = page
	token, err := m.sign(&next)
	if err != nil {
		return nil, "", err
	}
	return &next, token, nil
}

func (m *SessionManager) sign(s *Session) (string, error) {
	c := &claims{
		Page: s.Page,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.ID,
			Subject:   s.Username,
			IssuedAt:  jwt.NewNumericDate(s.IssuedAt),
			NotBefore: jwt.NewNumericDate(s.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return token, nil
}

// Parse validates a token and returns its session.
func (m *SessionManager) Parse(token string) (*Session, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid || c.Subject == "" {
		return nil, errors.New("invalid session")
	}

	return &Session{
		ID:        c.ID,
		Username:  c.Subject,
		Page:      c.Page,
		IssuedAt:  c.IssuedAt.Time,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}

// FromRequest reads the session cookie of r.
func (m *SessionManager) FromRequest(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, ErrNoSession
	}
	return m.Parse(cookie.Value)
}

func (m *SessionManager) SetCookie(w http.ResponseWriter, s *Session, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *SessionManager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

type sessionKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session stored by WithSession, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}
