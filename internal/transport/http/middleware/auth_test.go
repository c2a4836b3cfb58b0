package middleware_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/layoffproof/layoff-tracker/internal/reqctx"
	"github.com/layoffproof/layoff-tracker/internal/transport/http/middleware"
)

const testKey = "middleware-test-secret-32-chars!!"

func init() {
	gin.SetMode(gin.TestMode)
}

// newEngine builds a minimal gin engine with the Auth middleware protecting GET /protected.
// The handler writes the userID from both the gin and request contexts.
func newEngine() *gin.Engine {
	r := gin.New()
	r.GET("/protected", middleware.Auth([]byte(testKey)), func(c *gin.Context) {
		userID, _ := c.Get(middleware.UserIDKey)
		c.String(http.StatusOK, "%v|%s", userID, reqctx.UserID(c.Request.Context()))
	})
	return r
}

func makeJWT(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(method, claims)
	s, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign jwt: %v", err)
	}
	return s
}

// assertUnauthorized checks the single 401 shape every auth failure shares.
func assertUnauthorized(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate header")
	}
	var body struct {
		Error          string `json:"error"`
		Reauthenticate bool   `json:"reauthenticate"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error != "Unauthorized" || !body.Reauthenticate {
		t.Errorf("body = %+v", body)
	}
}

func serve(header string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	newEngine().ServeHTTP(w, req)
	return w
}

func TestAuth_MissingHeader_Returns401(t *testing.T) {
	assertUnauthorized(t, serve(""))
}

func TestAuth_NonBearerScheme_Returns401(t *testing.T) {
	assertUnauthorized(t, serve("Basic dXNlcjpwYXNz"))
}

func TestAuth_InvalidToken_Returns401(t *testing.T) {
	assertUnauthorized(t, serve("Bearer not.a.jwt"))
}

func TestAuth_ExpiredToken_Returns401(t *testing.T) {
	tok := makeJWT(t, jwt.SigningMethodHS256, []byte(testKey), jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
		"iat": time.Now().Add(-2 * time.Hour).Unix(),
	})
	assertUnauthorized(t, serve("Bearer "+tok))
}

func TestAuth_MissingExpiry_Returns401(t *testing.T) {
	tok := makeJWT(t, jwt.SigningMethodHS256, []byte(testKey), jwt.MapClaims{"sub": "user-1"})
	assertUnauthorized(t, serve("Bearer "+tok))
}

func TestAuth_WrongSigningKey_Returns401(t *testing.T) {
	tok := makeJWT(t, jwt.SigningMethodHS256, []byte("different-key-that-is-32-chars!!"), jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	assertUnauthorized(t, serve("Bearer "+tok))
}

func TestAuth_OtherHMACAlgorithm_Returns401(t *testing.T) {
	tok := makeJWT(t, jwt.SigningMethodHS512, []byte(testKey), jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	assertUnauthorized(t, serve("Bearer "+tok))
}

func TestAuth_MissingSubject_Returns401(t *testing.T) {
	tok := makeJWT(t, jwt.SigningMethodHS256, []byte(testKey), jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	assertUnauthorized(t, serve("Bearer "+tok))
}

func TestAuth_ValidToken_PassesAndSetsUserID(t *testing.T) {
	const userID = "user-abc"
	tok := makeJWT(t, jwt.SigningMethodHS256, []byte(testKey), jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	})

	w := serve("Bearer " + tok)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if got, want := w.Body.String(), fmt.Sprintf("%s|%s", userID, userID); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}
