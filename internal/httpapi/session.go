package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"kasapos/backend/internal/domain"
)

var ErrInvalidToken = errors.New("invalid or expired token")

const tokenIssuer = "kasapos"

// SessionManager signs and verifies the bearer tokens handed out at login.
// A token only names a terminal session; whether that session is still
// open is checked against the service on every request.
type SessionManager struct {
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

type sessionClaims struct {
	jwtlib.RegisteredClaims
	TerminalID string `json:"terminal_id"`
	SessionID  string `json:"session_id"`
	Branch     string `json:"branch"`
}

// SessionToken is what a terminal keeps after logging in.
type SessionToken struct {
	TerminalID string `json:"terminal_id"`
	SessionID  string `json:"session_id"`
	UserID     int    `json:"user_id"`
	Branch     string `json:"branch"`
}

func NewSessionManager(secret string, tokenTTL time.Duration) (*SessionManager, error) {
	if secret == "" {
		return nil, errors.New("session secret is required")
	}
	if tokenTTL <= 0 {
		tokenTTL = 12 * time.Hour
	}
	return &SessionManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		now:      time.Now,
	}, nil
}

// Issue signs a token for session and returns it with its expiry.
func (m *SessionManager) Issue(session domain.Session) (string, time.Time, error) {
	issuedAt := m.now().UTC()
	expiresAt := issuedAt.Add(m.tokenTTL)
	claims := sessionClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   strconv.Itoa(session.User.ID),
			ID:        session.ID,
			IssuedAt:  jwtlib.NewNumericDate(issuedAt),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    tokenIssuer,
		},
		TerminalID: session.TerminalID,
		SessionID:  session.ID,
		Branch:     session.Branch,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (m *SessionManager) Parse(tokenStr string) (SessionToken, error) {
	claims := &sessionClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	},
		jwtlib.WithValidMethods([]string{"HS256"}),
		jwtlib.WithIssuer(tokenIssuer),
		jwtlib.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return SessionToken{}, ErrInvalidToken
	}
	if claims.TerminalID == "" || claims.SessionID == "" {
		return SessionToken{}, ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return SessionToken{}, ErrInvalidToken
	}
	userID, err := strconv.Atoi(sub)
	if err != nil {
		return SessionToken{}, ErrInvalidToken
	}
	return SessionToken{
		TerminalID: claims.TerminalID,
		SessionID:  claims.SessionID,
		UserID:     userID,
		Branch:     claims.Branch,
	}, nil
}

type sessionContextKey struct{}

func withSession(ctx context.Context, session domain.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, session)
}

func sessionFromContext(ctx context.Context) (domain.Session, bool) {
	session, ok := ctx.Value(sessionContextKey{}).(domain.Session)
	return session, ok
}
