package auth

import (
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
)

const (
	defaultJWKSCacheTTL = 15 * time.Minute
	envAuthTestMode     = "AUTH_TEST_MODE"
	envTestJWTSecret    = "TEST_JWT_SECRET"
	envLocalAuthMode    = "LOCAL_AUTH_MODE"
	envLocalAuthSecret  = "LOCAL_AUTH_SHARED_SECRET"
	envJWKSCacheTTL     = "JWKS_CACHE_TTL"
)

// TokenInfo is what the client keeps from a validated access token.
type TokenInfo struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// Validator checks access tokens issued by the identity provider.
type Validator struct {
	JWKS       *keyfunc.JWKS
	Audience   string
	Issuer     string
	TestMode   bool
	TestSecret []byte

	parser      *jwt.Parser
	keyCache    sync.Map
	keyCacheTTL time.Duration
}

type cachedKey struct {
	key       any
	expiresAt time.Time
}

// NewValidator creates a Validator. With LOCAL_AUTH_MODE=hs256 or
// AUTH_TEST_MODE=1 set, tokens are verified against a shared secret
// instead of the provider's JWKS.
func NewValidator(jwks *keyfunc.JWKS, audience, issuer string) *Validator {
	v := &Validator{JWKS: jwks, Audience: audience, Issuer: issuer}
	v.keyCacheTTL = parseCacheTTL()

	if mode := strings.ToLower(os.Getenv(envLocalAuthMode)); mode != "" {
		switch mode {
		case "hs256":
			secret := os.Getenv(envLocalAuthSecret)
			if secret == "" {
				panic("LOCAL_AUTH_SHARED_SECRET must be set when LOCAL_AUTH_MODE=hs256")
			}
			v.TestMode = true
			v.TestSecret = []byte(secret)
		default:
			panic("unsupported LOCAL_AUTH_MODE value")
		}
	} else if os.Getenv(envAuthTestMode) == "1" {
		secret := os.Getenv(envTestJWTSecret)
		if secret == "" {
			panic("TEST_JWT_SECRET must be set when AUTH_TEST_MODE=1")
		}
		v.TestMode = true
		v.TestSecret = []byte(secret)
	}

	if v.TestMode {
		v.parser = jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	} else {
		v.parser = jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}))
	}
	return v
}

func parseCacheTTL() time.Duration {
	ttl := defaultJWKSCacheTTL
	if raw := os.Getenv(envJWKSCacheTTL); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			panic("invalid JWKS_CACHE_TTL")
		}
		ttl = parsed
	}
	return ttl
}

// Validate verifies the token and extracts the session identity from it.
func (v *Validator) Validate(token string) (TokenInfo, error) {
	if token == "" {
		return TokenInfo{}, errors.New("empty token")
	}

	var parsedToken *jwt.Token
	var err error
	if v.TestMode {
		parsedToken, err = v.parser.Parse(token, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("invalid signing method")
			}
			return v.TestSecret, nil
		})
	} else {
		parsedToken, err = v.parser.Parse(token, func(t *jwt.Token) (any, error) {
			return v.keyForToken(t)
		})
	}
	if err != nil {
		return TokenInfo{}, err
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok {
		return TokenInfo{}, errors.New("invalid claims")
	}

	now := time.Now().Unix()
	if !claims.VerifyExpiresAt(now, true) {
		return TokenInfo{}, errors.New("token expired")
	}
	if !claims.VerifyNotBefore(now, false) {
		return TokenInfo{}, errors.New("token not valid yet")
	}
	if v.Audience != "" && !claims.VerifyAudience(v.Audience, false) {
		return TokenInfo{}, errors.New("invalid audience")
	}
	if v.Issuer != "" && !claims.VerifyIssuer(v.Issuer, false) {
		return TokenInfo{}, errors.New("invalid issuer")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return TokenInfo{}, errors.New("missing sub")
	}

	info := TokenInfo{UserID: sub}
	if email, ok := claims["email"].(string); ok {
		info.Email = email
	}
	if exp, ok := claims["exp"].(float64); ok {
		info.ExpiresAt = time.Unix(int64(exp), 0)
	}
	return info, nil
}

func (v *Validator) keyForToken(token *jwt.Token) (any, error) {
	if v.JWKS == nil {
		return nil, errors.New("jwks not configured")
	}

	kid, _ := token.Header["kid"].(string)
	if kid != "" && v.keyCacheTTL > 0 {
		if cached, ok := v.keyCache.Load(kid); ok {
			entry := cached.(cachedKey)
			if time.Now().Before(entry.expiresAt) {
				return entry.key, nil
			}
			v.keyCache.Delete(kid)
		}
	}

	key, err := v.JWKS.Keyfunc(token)
	if err != nil {
		return nil, err
	}

	if kid != "" && v.keyCacheTTL > 0 {
		v.keyCache.Store(kid, cachedKey{key: key, expiresAt: time.Now().Add(v.keyCacheTTL)})
	}
	return key, nil
}
