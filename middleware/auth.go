package middleware

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Djalves424/ProjetoDSCommerce/authz"
	"github.com/Djalves424/ProjetoDSCommerce/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const principalKey = "principal"

var jwtSecret = []byte(getEnv("JWT_SECRET", "your-secret-key-change-in-production"))

// GenerateToken signs a bearer token carrying the user identity and role set.
func GenerateToken(userID int, email string, roles []string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"email":   email,
		"roles":   roles,
		"exp":     time.Now().Add(time.Hour * 24).Unix(),
	})
	return token.SignedString(jwtSecret)
}

// AuthMiddleware resolves the principal from the Authorization header.
// Missing, malformed or expired tokens abort the request with 401.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			abortWithError(c, http.StatusUnauthorized, "Missing or invalid Authorization header")
			return
		}

		tokenString := strings.TrimPrefix(header, "Bearer ")
		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return jwtSecret, nil
		})
		if err != nil || !token.Valid {
			abortWithError(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "Invalid token claims")
			return
		}

		userID, ok := claims["user_id"].(float64)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "Invalid token claims")
			return
		}

		email, _ := claims["email"].(string)

		var roles []string
		if rawRoles, ok := claims["roles"].([]interface{}); ok {
			for _, r := range rawRoles {
				if role, ok := r.(string); ok {
					roles = append(roles, role)
				}
			}
		}

		c.Set(principalKey, authz.Principal{
			ID:    int(userID),
			Email: email,
			Roles: roles,
		})
		c.Next()
	}
}

// RequireRole gates a route on the principal resolved by AuthMiddleware.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "Missing or invalid Authorization header")
			return
		}
		if !principal.HasRole(role) {
			abortWithError(c, http.StatusForbidden, "Access denied")
			return
		}
		c.Next()
	}
}

func GetPrincipal(c *gin.Context) (authz.Principal, bool) {
	value, exists := c.Get(principalKey)
	if !exists {
		return authz.Principal{}, false
	}
	principal, ok := value.(authz.Principal)
	return principal, ok
}

// SetPrincipal injects a principal directly, bypassing token parsing. Used by
// handler tests.
func SetPrincipal(p authz.Principal) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(principalKey, p)
		c.Next()
	}
}

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Timestamp: time.Now().UTC(),
		Status:    status,
		Error:     message,
		Path:      c.Request.URL.Path,
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
