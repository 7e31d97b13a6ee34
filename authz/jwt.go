package authz

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Sentinel errors returned by the authenticator.
var (
	ErrMissingCredentials = errors.New("authz: missing credentials")
	ErrTokenMalformed     = errors.New("authz: token malformed")
	ErrTokenExpired       = errors.New("authz: token expired")
	ErrInvalidSubject     = errors.New("authz: subject is not a customer id")
)

// JWTConfig configures the bearer token authenticator.
type JWTConfig struct {
	Secret []byte

	// Issuer is the expected iss claim. Empty accepts any issuer.
	Issuer string

	// TokenTTL is the lifetime of issued tokens.
	// Default: 1 hour
	TokenTTL time.Duration
}

// Claims are the token claims. Subject carries the customer id.
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuthenticator turns HS256 bearer tokens into principals.
type JWTAuthenticator struct {
	config JWTConfig
	now    func() time.Time
}

// NewJWTAuthenticator creates a new authenticator.
func NewJWTAuthenticator(config JWTConfig) *JWTAuthenticator {
	if config.TokenTTL <= 0 {
		config.TokenTTL = time.Hour
	}
	return &JWTAuthenticator{config: config, now: time.Now}
}

// Authenticate validates an Authorization header value.
func (a *JWTAuthenticator) Authenticate(header string) (*Principal, error) {
	tokenString, found := strings.CutPrefix(strings.TrimSpace(header), "Bearer ")
	if !found {
		return nil, ErrMissingCredentials
	}
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrMissingCredentials
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	}
	if a.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.config.Issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return a.config.Secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil || id == uuid.Nil {
		return nil, ErrInvalidSubject
	}

	return &Principal{ID: id, Name: claims.Name}, nil
}

// IssueToken signs a token for p.
func (a *JWTAuthenticator) IssueToken(p Principal) (string, error) {
	now := a.now()
	claims := Claims{
		Name: p.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID.String(),
			Issuer:    a.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.config.TokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.config.Secret)
}
