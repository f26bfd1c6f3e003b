package middleware

import (
	"net/http"
	"strings"

	"officer-review-api/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

// Keys under which AuthMiddleware stores the acting officer.
const (
	ContextOfficerID = "userID"
	ContextEmail     = "email"
	ContextRoleID    = "roleID"
)

// Claims is the token payload issued by the identity provider. Only the
// subject id is trusted; role and status come from the officers table.
type Claims struct {
	UserID int    `json:"user_id"`
	Email  string `json:"email"`
	RoleID int    `json:"role_id"`
	jwt.RegisteredClaims
}

func abortAuth(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

// AuthMiddleware verifies an HS256 bearer token and loads the active officer
// it names.
func AuthMiddleware(secret string, db *gorm.DB) gin.HandlerFunc {
	keyFunc := func(*jwt.Token) (interface{}, error) { return []byte(secret), nil }
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortAuth(c, http.StatusUnauthorized, "Authorization header is required")
			return
		}
		raw, ok := bearerToken(header)
		if !ok {
			abortAuth(c, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		claims := &Claims{}
		if token, err := parser.ParseWithClaims(raw, claims, keyFunc); err != nil || !token.Valid {
			abortAuth(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		var officer models.Officer
		err := db.WithContext(c.Request.Context()).
			Where("officer_id = ? AND is_active = ?", claims.UserID, true).
			First(&officer).Error
		if err != nil {
			abortAuth(c, http.StatusUnauthorized, "Officer not found or inactive")
			return
		}

		c.Set(ContextOfficerID, officer.OfficerID)
		c.Set(ContextEmail, officer.Email)
		c.Set(ContextRoleID, officer.RoleID)
		c.Next()
	}
}

// RequireRole admits only officers holding one of roleIDs.
func RequireRole(roleIDs ...int) gin.HandlerFunc {
	allowed := make(map[int]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		allowed[id] = struct{}{}
	}

	return func(c *gin.Context) {
		role, ok := c.Get(ContextRoleID)
		if !ok {
			abortAuth(c, http.StatusForbidden, "Role not found")
			return
		}
		id, _ := role.(int)
		if _, ok := allowed[id]; !ok {
			abortAuth(c, http.StatusForbidden, "Insufficient permissions")
			return
		}
		c.Next()
	}
}
