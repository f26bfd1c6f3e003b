package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"officer-review-api/models"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.Officer{}))
	require.NoError(t, db.Create(&[]models.Officer{
		{OfficerID: 1, Name: "Officer", Email: "officer@example.com", RoleID: models.RoleOfficer, IsActive: true},
		{OfficerID: 100, Name: "Admin", Email: "admin@example.com", RoleID: models.RoleAdmin, IsActive: true},
		{OfficerID: 9, Name: "Former", Email: "former@example.com", RoleID: models.RoleAdmin, IsActive: false},
	}).Error)
	return db
}

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims Claims) string {
	t.Helper()
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	}
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func authRouter(db *gorm.DB, roles ...int) *gin.Engine {
	r := gin.New()
	handlers := []gin.HandlerFunc{AuthMiddleware(testSecret, db)}
	if len(roles) > 0 {
		handlers = append(handlers, RequireRole(roles...))
	}
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetInt("userID"), "role_id": c.GetInt("roleID")})
	})
	r.GET("/me", handlers...)
	return r
}

func doAuth(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddlewareResolvesOfficer(t *testing.T) {
	db := newAuthDB(t)
	// The token claims the admin role but the record says officer.
	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), Claims{UserID: 1, RoleID: models.RoleAdmin})

	w := doAuth(authRouter(db), "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":1,"role_id":1}`, w.Body.String())
}

func TestAuthMiddlewareRejects(t *testing.T) {
	db := newAuthDB(t)
	expired := Claims{UserID: 1}
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"no bearer prefix", signToken(t, jwt.SigningMethodHS256, []byte(testSecret), Claims{UserID: 1})},
		{"wrong secret", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"), Claims{UserID: 1})},
		{"other algorithm", "Bearer " + signToken(t, jwt.SigningMethodHS512, []byte(testSecret), Claims{UserID: 1})},
		{"expired", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), expired)},
		{"inactive officer", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), Claims{UserID: 9})},
		{"unknown officer", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), Claims{UserID: 404})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doAuth(authRouter(db), tt.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	db := newAuthDB(t)
	r := authRouter(db, models.RoleAdmin)

	officer := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), Claims{UserID: 1})
	assert.Equal(t, http.StatusForbidden, doAuth(r, "Bearer "+officer).Code)

	admin := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), Claims{UserID: 100})
	assert.Equal(t, http.StatusOK, doAuth(r, "Bearer "+admin).Code)
}
