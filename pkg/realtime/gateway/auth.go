package gateway

import (
	"context"
	"errors"
	"net/url"
	"os"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/jwks"
	jwtvalidator "github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/trackmate/trackmate/pkg/realtime/registry"
)

// CustomClaims carries the role claim our tokens include on top of the
// registered claims
type CustomClaims struct {
	Role string `json:"https://trackmate.app/role"`
}

func (c CustomClaims) Validate(ctx context.Context) error {
	return nil
}

// JWKSValidator validates bearer tokens against the tenant's published JWKS
// and maps the role claim to a connection role
type JWKSValidator struct {
	validator *jwtvalidator.Validator
}

func NewJWKSValidator() (*JWKSValidator, error) {
	domain := os.Getenv("TRACKMATE_AUTH_DOMAIN")
	if domain == "" {
		return nil, errors.New("TRACKMATE_AUTH_DOMAIN must be set")
	}

	issuerURL, err := url.Parse("https://" + domain + "/")
	if err != nil {
		return nil, err
	}

	provider := jwks.NewCachingProvider(issuerURL, 5*time.Minute)

	validator, err := jwtvalidator.New(
		provider.KeyFunc,
		jwtvalidator.RS256,
		issuerURL.String(),
		[]string{os.Getenv("TRACKMATE_AUTH_AUDIENCE")},
		jwtvalidator.WithCustomClaims(
			func() jwtvalidator.CustomClaims {
				return &CustomClaims{}
			},
		),
		jwtvalidator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		return nil, err
	}

	return &JWKSValidator{validator: validator}, nil
}

func (v *JWKSValidator) Validate(ctx context.Context, token string) (registry.Identity, error) {
	claimsI, err := v.validator.ValidateToken(ctx, token)
	if err != nil {
		return registry.Identity{}, err
	}

	claims := claimsI.(*jwtvalidator.ValidatedClaims)

	role := registry.RoleStudent
	if customClaims, ok := claims.CustomClaims.(*CustomClaims); ok {
		switch customClaims.Role {
		case "driver":
			role = registry.RoleDriver
		case "admin":
			role = registry.RoleAdmin
		}
	}

	return registry.Identity{
		UserID: claims.RegisteredClaims.Subject,
		Role:   role,
	}, nil
}
