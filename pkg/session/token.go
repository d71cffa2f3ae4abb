package session

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleCarwash  Role = "carwash"
)

type Claims struct {
	jwt.RegisteredClaims

	Role      Role  `json:"role"`
	CarwashID int64 `json:"carwash_id,omitempty"`
}

// Identity is the authenticated caller a request acts on behalf of.
type Identity struct {
	UserID    int64
	Role      Role
	CarwashID int64
	ExpiresAt time.Time
}

// Issue signs an HS256 token for id. Used by dev tooling and tests; production tokens
// come from the login service sharing the same secret.
func Issue(id Identity, audience, secret string, now time.Time, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("missing secret")
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(id.UserID, 10),
			Audience:  []string{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:      id.Role,
		CarwashID: id.CarwashID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Verify validates a session token (JWT, HS256) and returns the identity it carries.
func Verify(tokenString, audience, secret string, now time.Time) (*Identity, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("missing token")
	}
	if secret == "" {
		return nil, fmt.Errorf("missing secret")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	claims := &Claims{}
	tok, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	if audience != "" && !audContains(claims.Audience, audience) {
		return nil, fmt.Errorf("audience mismatch")
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, fmt.Errorf("invalid subject")
	}

	switch claims.Role {
	case RoleCustomer:
	case RoleCarwash:
		if claims.CarwashID <= 0 {
			return nil, fmt.Errorf("carwash token without carwash_id")
		}
	default:
		return nil, fmt.Errorf("unknown role %q", claims.Role)
	}

	return &Identity{
		UserID:    userID,
		Role:      claims.Role,
		CarwashID: claims.CarwashID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func audContains(aud []string, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}
