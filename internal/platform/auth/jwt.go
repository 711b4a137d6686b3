package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/juju/clock"
	jujuerrors "github.com/juju/errors"

	"landr/internal/platform/config"
)

const issuer = "landr"

// Claims identify the operator a bearer token was issued to.
type Claims struct {
	Username string `json:"usr"`
	jwt.RegisteredClaims
}

type TokenService struct {
	config config.JWTConfig
	clock  clock.Clock
}

func NewTokenService(cfg config.JWTConfig, clk clock.Clock) *TokenService {
	if clk == nil {
		clk = clock.WallClock
	}
	return &TokenService{config: cfg, clock: clk}
}

// GenerateAccessToken returns a signed HS256 token and its expiry.
func (s *TokenService) GenerateAccessToken(username string) (string, time.Time, error) {
	now := s.clock.Now()
	expires := now.Add(s.config.AccessTokenTTL)
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, jujuerrors.Annotate(err, "sign access token")
	}
	return signed, expires, nil
}

func (s *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jujuerrors.Unauthorizedf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return nil, jujuerrors.NewUnauthorized(err, "invalid or expired token")
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, jujuerrors.Unauthorizedf("invalid token")
}
