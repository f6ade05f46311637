package coordinator

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc/metadata"

	apperrors "github.com/louisbranch/assetflow/internal/platform/errors"
)

// Metadata keys read by the server interceptor.
const (
	PrincipalHeader     = "x-assetflow-principal"
	RequestIDHeader     = "x-assetflow-request-id"
	LocaleHeader        = "x-assetflow-locale"
	authorizationHeader = "authorization"
	acceptLanguage      = "accept-language"
)

// TokenVerifier checks EdDSA bearer tokens and yields their subject.
type TokenVerifier struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// NewTokenVerifier decodes a base64 Ed25519 public key. It returns nil with
// no error when key is empty, which selects header-based identity.
func NewTokenVerifier(issuer, audience, key string) (*TokenVerifier, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	keyBytes, err := decodeBase64(key)
	if err != nil {
		return nil, fmt.Errorf("decode token public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("token public key must be %d bytes", ed25519.PublicKeySize)
	}
	if strings.TrimSpace(issuer) == "" || strings.TrimSpace(audience) == "" {
		return nil, errors.New("token issuer and audience are required")
	}
	return &TokenVerifier{
		Issuer:   strings.TrimSpace(issuer),
		Audience: strings.TrimSpace(audience),
		Key:      ed25519.PublicKey(keyBytes),
		Now:      time.Now,
	}, nil
}

// Verify parses token and returns its subject as the principal.
func (v *TokenVerifier) Verify(token string) (string, error) {
	now := v.Now
	if now == nil {
		now = time.Now
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithIssuer(v.Issuer),
		jwt.WithAudience(v.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeUnauthenticated, jwtReason(err), err)
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", apperrors.New(apperrors.CodeUnauthenticated, "token subject is required")
	}
	return subject, nil
}

func jwtReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "token is expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrEd25519Verification):
		return "token signature is invalid"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
		return "token was issued for another service"
	default:
		return "token is invalid"
	}
}

// Identity resolves the calling principal from request metadata. With a
// verifier only bearer tokens count; otherwise the principal header is
// trusted, which suits deployments behind an authenticating proxy.
type Identity struct {
	Verifier *TokenVerifier
}

// Principal returns the caller, or "" for anonymous calls.
func (i Identity) Principal(md metadata.MD) (string, error) {
	if i.Verifier == nil {
		return firstValue(md, PrincipalHeader), nil
	}
	raw := firstValue(md, authorizationHeader)
	if raw == "" {
		return "", nil
	}
	scheme, token, ok := strings.Cut(raw, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", apperrors.New(apperrors.CodeUnauthenticated, "authorization must be a bearer token")
	}
	return i.Verifier.Verify(strings.TrimSpace(token))
}

// firstValue returns the first printable ASCII value for key.
func firstValue(md metadata.MD, key string) string {
	for _, value := range md.Get(key) {
		value = strings.TrimSpace(value)
		if printableASCII(value) {
			return value
		}
	}
	return ""
}

func printableASCII(value string) bool {
	if value == "" {
		return false
	}
	for i := 0; i < len(value); i++ {
		if value[i] < 0x20 || value[i] > 0x7e {
			return false
		}
	}
	return true
}

func decodeBase64(value string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if decoded, err := enc.DecodeString(value); err == nil {
			return decoded, nil
		}
	}
	return nil, errors.New("value is not base64")
}
