// ABOUTME: Issues and verifies signed, time-scoped bearer tokens for the polling API
// ABOUTME: Uses HS256 signing with per-tenant keys and a default fallback

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/greentic/messaging-gateway/internal/envelope"
)

const (
	// Issuer and Audience pin tokens to the webchat polling surface.
	Issuer   = "greentic.webchat"
	Audience = "directline"

	// DefaultTTL matches the Direct-Line token lifetime of 1800 seconds.
	DefaultTTL = 30 * time.Minute
)

// SubjectKind distinguishes user tokens from conversation tokens.
type SubjectKind string

const (
	SubjectUser         SubjectKind = "user"
	SubjectConversation SubjectKind = "conversation"
)

// Token errors
var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token expired")
	ErrScopeMismatch = errors.New("token scope mismatch")
	ErrWrongSubject  = errors.New("wrong token subject kind")
	ErrMissingKey    = errors.New("no signing key configured for scope")
)

// Claims is the verified claim set handed back to callers.
type Claims struct {
	Kind         SubjectKind
	Subject      string
	Scope        envelope.TenantCtx
	Conversation string
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// tokenClaims is the wire-level claim set.
type tokenClaims struct {
	Kind         string `json:"kind"`
	Env          string `json:"env"`
	Tenant       string `json:"tenant"`
	Team         string `json:"team,omitempty"`
	Conversation string `json:"conv,omitempty"`
	jwt.RegisteredClaims
}

// Service issues and verifies tokens. It is stateless beyond the key
// table and safe for unlimited parallel calls.
type Service struct {
	defaultKey []byte
	tenantKeys map[string][]byte
	ttl        time.Duration
}

// NewService creates a token service. tenantKeys maps "<env>:<tenant>" to
// a signing key; defaultKey is used when no tenant-specific key exists.
// ttl of zero falls back to DefaultTTL.
func NewService(defaultKey []byte, tenantKeys map[string][]byte, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	keys := make(map[string][]byte, len(tenantKeys))
	for k, v := range tenantKeys {
		keys[k] = v
	}
	return &Service{defaultKey: defaultKey, tenantKeys: keys, ttl: ttl}
}

// TTL returns the configured token lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// keyFor resolves the signing key for a scope.
// Returns ErrMissingKey when neither a tenant key nor a default is configured.
func (s *Service) keyFor(scope envelope.TenantCtx) ([]byte, error) {
	if key, ok := s.tenantKeys[scope.Env+":"+scope.Tenant]; ok && len(key) > 0 {
		return key, nil
	}
	if len(s.defaultKey) > 0 {
		return s.defaultKey, nil
	}
	return nil, fmt.Errorf("%w: %s:%s", ErrMissingKey, scope.Env, scope.Tenant)
}

// Issue builds and signs a claim set for the given subject. conversation
// is empty for user tokens and the bound conversation id for conversation
// tokens. A non-positive ttl uses the service default.
func (s *Service) Issue(kind SubjectKind, subject string, scope envelope.TenantCtx, conversation string, ttl time.Duration) (string, time.Time, error) {
	key, err := s.keyFor(scope)
	if err != nil {
		return "", time.Time{}, err
	}
	if ttl <= 0 {
		ttl = s.ttl
	}

	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := tokenClaims{
		Kind:         string(kind),
		Env:          scope.Env,
		Tenant:       scope.Tenant,
		Team:         scope.Team,
		Conversation: conversation,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify recomputes the MAC and checks expiry, subject kind, and scope.
// When wantScope is nil, the key is resolved from the scope carried in the
// token itself and the scope check is skipped; pass a scope to require an
// exact match (env, tenant, and team).
func (s *Service) Verify(tokenString string, wantKind SubjectKind, wantScope *envelope.TenantCtx) (*Claims, error) {
	scope := wantScope
	if scope == nil {
		peeked, err := peekScope(tokenString)
		if err != nil {
			return nil, err
		}
		scope = peeked
	}

	key, err := s.keyFor(*scope)
	if err != nil {
		return nil, err
	}

	var claims tokenClaims
	_, err = jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	}, jwt.WithIssuer(Issuer), jwt.WithAudience(Audience))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Kind != string(wantKind) {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrWrongSubject, claims.Kind, wantKind)
	}
	got := envelope.TenantCtx{Env: claims.Env, Tenant: claims.Tenant, Team: claims.Team}
	if wantScope != nil && got != *wantScope {
		return nil, fmt.Errorf("%w: token is scoped to %s", ErrScopeMismatch, got.Key())
	}

	out := &Claims{
		Kind:         SubjectKind(claims.Kind),
		Subject:      claims.RegisteredClaims.Subject,
		Scope:        got,
		Conversation: claims.Conversation,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// peekScope extracts the tenant scope from an unverified token so the
// right signing key can be selected. The claims are not trusted until the
// signature check passes.
func peekScope(tokenString string) (*envelope.TenantCtx, error) {
	var claims tokenClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return &envelope.TenantCtx{Env: claims.Env, Tenant: claims.Tenant, Team: claims.Team}, nil
}
