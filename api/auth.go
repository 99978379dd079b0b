package api

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const (
	defaultJWKSCacheTTL = 15 * time.Minute
	userIDKey           = "userID"
)

var (
	errMissingAuthorization = errors.New("missing authorization header")
	errBadAuthorization     = errors.New("bad auth header")
)

// Authenticator resolves the caller of a request from its Authorization header.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// AuthConfig selects how bearer tokens are verified. When LocalSecret is set
// tokens are HS256 signed with it; otherwise RS256 keys come from JWKS.
type AuthConfig struct {
	JWKS        *keyfunc.JWKS
	Audience    string
	Issuer      string
	LocalSecret []byte
	KeyCacheTTL time.Duration
}

// Auth validates incoming JWT tokens.
type Auth struct {
	cfg    AuthConfig
	parser *jwt.Parser

	keyCache sync.Map
}

type cachedKey struct {
	key       any
	expiresAt time.Time
}

func NewAuth(cfg AuthConfig) *Auth {
	if cfg.KeyCacheTTL == 0 {
		cfg.KeyCacheTTL = defaultJWKSCacheTTL
	}
	method := "RS256"
	if len(cfg.LocalSecret) > 0 {
		method = "HS256"
	}
	return &Auth{cfg: cfg, parser: jwt.NewParser(jwt.WithValidMethods([]string{method}))}
}

// UserIDFromAuthHeader extracts the user identifier from the Authorization header.
func (a *Auth) UserIDFromAuthHeader(h string) (string, error) {
	token, err := bearerToken(h)
	if err != nil {
		return "", err
	}
	return a.userIDFromToken(token)
}

func (a *Auth) userIDFromToken(raw string) (string, error) {
	parsed, err := a.parser.Parse(raw, a.keyFor)
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}

	now := time.Now().Add(time.Minute).Unix()
	if !claims.VerifyExpiresAt(now, true) {
		return "", errors.New("token expired")
	}
	if !claims.VerifyNotBefore(now, false) {
		return "", errors.New("token not valid yet")
	}
	if a.cfg.Audience != "" && !claims.VerifyAudience(a.cfg.Audience, false) {
		return "", errors.New("invalid audience")
	}
	if a.cfg.Issuer != "" && !claims.VerifyIssuer(a.cfg.Issuer, false) {
		return "", errors.New("invalid issuer")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("missing sub")
	}
	return sub, nil
}

func (a *Auth) keyFor(token *jwt.Token) (any, error) {
	if len(a.cfg.LocalSecret) > 0 {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return a.cfg.LocalSecret, nil
	}
	if a.cfg.JWKS == nil {
		return nil, errors.New("jwks not configured")
	}

	kid, _ := token.Header["kid"].(string)
	if kid != "" {
		if cached, ok := a.keyCache.Load(kid); ok {
			entry := cached.(cachedKey)
			if time.Now().Before(entry.expiresAt) {
				return entry.key, nil
			}
			a.keyCache.Delete(kid)
		}
	}
	key, err := a.cfg.JWKS.Keyfunc(token)
	if err != nil {
		return nil, err
	}
	if kid != "" {
		a.keyCache.Store(kid, cachedKey{key: key, expiresAt: time.Now().Add(a.cfg.KeyCacheTTL)})
	}
	return key, nil
}

// bearerToken returns the compact JWT carried by an Authorization header.
func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errMissingAuthorization
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" || strings.Count(token, ".") != 2 {
		return "", errBadAuthorization
	}
	return token, nil
}

// requireAuth rejects unauthenticated requests and stores the caller's id in
// the echo context. EventSource clients cannot set headers, so the stream
// route, and only that route, also accepts ?token=.
func requireAuth(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if token := c.QueryParam("token"); header == "" && token != "" && c.Path() == streamPath {
				header = "Bearer " + token
			}
			userID, err := auth.UserIDFromAuthHeader(header)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, errorBody{Message: err.Error()})
			}
			c.Set(userIDKey, userID)
			return next(c)
		}
	}
}

func userID(c echo.Context) string {
	id, _ := c.Get(userIDKey).(string)
	return id
}
