package middleware

import (
	"errors"
	"net/http"
	"strings"

	"proforma/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in the "role" claim of tokens from the identity provider.
const (
	RoleAdmin      = "admin"
	RoleAccountant = "accountant"
	RoleViewer     = "viewer"
)

var (
	// WriteRoles may change invoices and payments.
	WriteRoles = []string{RoleAdmin, RoleAccountant}
	// ReadRoles may read the ledger.
	ReadRoles = []string{RoleAdmin, RoleAccountant, RoleViewer}
)

var errMissingRole = errors.New("role not found in token")

const (
	ctxUserID   = "userID"
	ctxUserRole = "userRole"
)

// Claims is the part of a verified token the ledger uses.
type Claims struct {
	Subject string
	Role    string
}

// Authenticator verifies HMAC-signed bearer tokens.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// ParseToken verifies the signature and returns the subject and role.
func (a *Authenticator) ParseToken(tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	})
	if err != nil {
		return Claims{}, err
	}
	if !token.Valid {
		return Claims{}, jwt.ErrTokenInvalidClaims
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, jwt.ErrTokenInvalidClaims
	}
	role, ok := mapClaims["role"].(string)
	if !ok || role == "" {
		return Claims{}, errMissingRole
	}
	subject, _ := mapClaims.GetSubject()
	return Claims{Subject: subject, Role: role}, nil
}

// RequireRole validates the bearer token and checks the role claim against allowedRoles
func (a *Authenticator) RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid authorization format. Expected 'Bearer <token>'"))
			return
		}

		claims, err := a.ParseToken(parts[1])
		if errors.Is(err, errMissingRole) {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Role not found in token"))
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token: "+err.Error()))
			return
		}

		if !HasRole(claims.Role, allowedRoles) {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
			return
		}

		c.Set(ctxUserID, claims.Subject)
		c.Set(ctxUserRole, claims.Role)

		c.Next()
	}
}

// Actor returns the authenticated subject, or "" on unauthenticated routes.
func Actor(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

// HasRole reports whether role is one of allowed.
func HasRole(role string, allowed []string) bool {
	for _, r := range allowed {
		if role == r {
			return true
		}
	}
	return false
}
