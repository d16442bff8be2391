package middleware

import (
	"net/http"
	"strings"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/apierror"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/policy"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ClaimsKey    = "claims"
	OperationKey = "operation"
)

// JWTClaims are the custom claims embedded in every access token.
type JWTClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Rol      string `json:"rol"`
	SocioID  string `json:"socio_id,omitempty"`
	Typ      string `json:"typ"`
	jwt.RegisteredClaims
}

// JWTAuth validates the Bearer access token on every protected route.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Autenticacion requerida"))
			return
		}

		tokenStr := strings.TrimPrefix(header, "Bearer ")
		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		// Refresh tokens are only good at /auth/refresh.
		if err != nil || !token.Valid || claims.Typ != "access" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Token invalido o expirado"))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// RequireOperation runs the single policy check of a route.
func RequireOperation(op policy.Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil || !policy.Authorize(claims.Rol, op) {
			c.AbortWithStatusJSON(http.StatusForbidden, apierror.New("Permisos insuficientes"))
			return
		}
		c.Set(OperationKey, op)
		c.Next()
	}
}

// GetClaims is a helper to retrieve typed claims from the Gin context.
func GetClaims(c *gin.Context) *JWTClaims {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*JWTClaims)
	return claims
}

// UsuarioID returns the caller's user id, nil on public routes.
func UsuarioID(c *gin.Context) *uuid.UUID {
	claims := GetClaims(c)
	if claims == nil {
		return nil
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil
	}
	return &id
}

// PuedeVerSocio reports whether the caller may act on socioID under the
// route's operation. Staff always can; a socio only on its own account.
func PuedeVerSocio(c *gin.Context, socioID uuid.UUID) bool {
	claims := GetClaims(c)
	if claims == nil {
		return false
	}
	op, _ := c.Get(OperationKey)
	operation, _ := op.(policy.Operation)
	if !policy.MustBeOwner(claims.Rol, operation) {
		return true
	}
	return claims.SocioID != "" && claims.SocioID == socioID.String()
}
