package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/labstack/echo/v4"

	utils "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

type UserClaims struct {
	Sub         string `json:"sub"`
	Email       string `json:"email"`
	TenantID    string `json:"tenant_id"`
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
}

// Tenant returns the tenant_id claim, falling back to the first realm role.
func (c *UserClaims) Tenant() string {
	if c.TenantID != "" {
		return c.TenantID
	}
	if len(c.RealmAccess.Roles) > 0 {
		return c.RealmAccess.Roles[0]
	}
	return ""
}

// ClaimsVerifier validates a raw bearer token and returns its claims
type ClaimsVerifier func(ctx context.Context, raw string) (*UserClaims, error)

// NewOIDCVerifier discovers issuer and verifies ID tokens issued for clientID
func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (ClaimsVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, err
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: clientID})

	return func(ctx context.Context, raw string) (*UserClaims, error) {
		idToken, err := verifier.Verify(ctx, raw)
		if err != nil {
			return nil, err
		}
		var claims UserClaims
		if err := idToken.Claims(&claims); err != nil {
			return nil, err
		}
		return &claims, nil
	}, nil
}

// Authentication requires a valid bearer token and takes the user and tenant from it.
// Token identity overrides the X-User-ID and X-Tenant-ID headers.
func Authentication(logger ectologger.Logger, verify ClaimsVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, span := tracing.StartSpan(c.Request().Context(), "middleware.Authentication")
			defer span.End()

			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				logger.WithContext(ctx).Warn("request is missing bearer token")
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer")
			}

			verifyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			claims, err := verify(verifyCtx, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				logger.WithContext(ctx).WithError(err).Warn("token is invalid")
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			tenantID := claims.Tenant()
			if tenantID == "" {
				logger.WithContext(ctx).WithField("sub", claims.Sub).Warn("token carries no tenant")
				return echo.NewHTTPError(http.StatusForbidden, "token carries no tenant")
			}

			ctx = utils.SetUserID(ctx, claims.Sub)
			ctx = utils.SetTenantID(ctx, tenantID)

			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}
