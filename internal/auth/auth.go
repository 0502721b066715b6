// Package auth issues and verifies admin bearer tokens.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin is the only role that may call admin endpoints.
const RoleAdmin = "admin"

// DefaultTTL is the lifetime of an issued token.
const DefaultTTL = 12 * time.Hour

var (
	// ErrBadCredentials is returned by Login for a wrong user or password.
	ErrBadCredentials = errors.New("invalid credentials")
	// ErrMissingToken is returned when no bearer token was presented.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken is returned for malformed, expired or forged tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrForbidden is returned for valid tokens without the admin role.
	ErrForbidden = errors.New("admin role required")
)

// Claims are the JWT claims of an admin session.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Config holds admin credentials and the signing secret.
type Config struct {
	User   string
	Pass   string
	Secret string
	TTL    time.Duration
}

// Authenticator checks admin credentials and tokens.
type Authenticator struct {
	user   [sha256.Size]byte
	pass   [sha256.Size]byte
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// New creates an Authenticator. An empty secret is rejected.
func New(cfg Config) (*Authenticator, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Authenticator{
		user:   sha256.Sum256([]byte(cfg.User)),
		pass:   sha256.Sum256([]byte(cfg.Pass)),
		secret: []byte(cfg.Secret),
		ttl:    cfg.TTL,
		now:    time.Now,
	}, nil
}

// Login verifies user and pass and returns a signed token.
func (a *Authenticator) Login(user, pass string) (string, error) {
	u := sha256.Sum256([]byte(user))
	p := sha256.Sum256([]byte(pass))
	// Both comparisons always run.
	ok := subtle.ConstantTimeCompare(u[:], a.user[:]) & subtle.ConstantTimeCompare(p[:], a.pass[:])
	if ok != 1 || user == "" {
		return "", ErrBadCredentials
	}
	return a.Issue(user)
}

// TTL is the lifetime of issued tokens.
func (a *Authenticator) TTL() time.Duration { return a.ttl }

// Issue signs an admin token for subject.
func (a *Authenticator) Issue(subject string) (string, error) {
	now := a.now()
	claims := Claims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

// Verify parses an Authorization header value and requires the admin role.
func (a *Authenticator) Verify(header string) (*Claims, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, ErrMissingToken
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}
	if claims.Role != RoleAdmin {
		return nil, ErrForbidden
	}
	return &claims, nil
}
