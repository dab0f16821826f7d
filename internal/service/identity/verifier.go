package identity

import (
	"fmt"
	"strings"
	"time"

	"dronefood-storefront/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

const scopeBanned = "banned"

// Claims carried by the auth service's id tokens.
type Claims struct {
	Scope string `json:"scope,omitempty"`
	Phone string `json:"phone,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Verifier turns a bearer token into an Identity.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier returns a Verifier. With an empty secret the token signature is not
// checked and only expiry is enforced.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), now: time.Now}
}

func (v *Verifier) Verify(token string) (*domain.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}
	claims := &Claims{}
	if len(v.secret) > 0 {
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return v.secret, nil
		}, jwt.WithTimeFunc(v.now))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
		}
		if !parsed.Valid {
			return nil, domain.ErrUnauthenticated
		}
	} else {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
		}
		if claims.ExpiresAt != nil && !v.now().Before(claims.ExpiresAt.Time) {
			return nil, fmt.Errorf("%w: token expired", domain.ErrUnauthenticated)
		}
	}

	if claims.Subject == "" && claims.Phone == "" {
		return nil, fmt.Errorf("%w: token carries neither subject nor phone", domain.ErrUnauthenticated)
	}
	id := &domain.Identity{
		UID:   claims.Subject,
		Phone: claims.Phone,
		Token: token,
		Scope: claims.Scope,
		Role:  claims.Role,
	}
	if id.Scope == scopeBanned {
		return id, domain.ErrBanned
	}
	return id, nil
}
