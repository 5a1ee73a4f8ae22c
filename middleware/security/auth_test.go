package security

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	usermodel "VChat/module/user/model"
	"VChat/tools/errs"
	jwtsec "VChat/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

var authJWT = jwtsec.Options{Secret: []byte("auth-test-secret"), Alg: "HS256", TTL: time.Hour}

func authRouter(t *testing.T, known map[string]*usermodel.User) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mw := Middleware(&Options{
		JWT: authJWT,
		LoadUser: func(_ context.Context, id string) (*usermodel.User, error) {
			if u, ok := known[id]; ok {
				return u, nil
			}
			return nil, errs.ErrUserNotFound
		},
	})

	r := gin.New()
	r.GET("/protected", mw, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "user": CurrentUser(c)})
	})
	return r
}

func call(r *gin.Engine, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestAuthMissingToken(t *testing.T) {
	t.Parallel()
	r := authRouter(t, nil)

	require.Equal(t, http.StatusUnauthorized, call(r, "").Code)
	require.Equal(t, http.StatusUnauthorized, call(r, "Basic abc").Code)
}

func TestAuthInvalidToken(t *testing.T) {
	t.Parallel()
	r := authRouter(t, nil)
	require.Equal(t, http.StatusUnauthorized, call(r, "Bearer garbage").Code)
}

func TestAuthWrongSecret(t *testing.T) {
	t.Parallel()
	r := authRouter(t, nil)

	other := jwtsec.Options{Secret: []byte("some-other-secret"), Alg: "HS256", TTL: time.Hour}
	token, _, err := jwtsec.Generate(other, "u1")
	require.NoError(t, err)

	require.Equal(t, http.StatusUnauthorized, call(r, "Bearer "+token).Code)
}

func TestAuthUserVanished(t *testing.T) {
	t.Parallel()
	r := authRouter(t, nil)

	token, _, err := jwtsec.Generate(authJWT, "gone")
	require.NoError(t, err)

	require.Equal(t, http.StatusNotFound, call(r, "Bearer "+token).Code)
}

func TestAuthLoadFault(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)
	mw := Middleware(&Options{
		JWT: authJWT,
		LoadUser: func(context.Context, string) (*usermodel.User, error) {
			return nil, errors.New("db down")
		},
	})
	r := gin.New()
	r.GET("/protected", mw, func(c *gin.Context) { c.Status(http.StatusOK) })

	token, _, err := jwtsec.Generate(authJWT, "u1")
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, call(r, "Bearer "+token).Code)
}

func TestAuthSuccessAttachesUser(t *testing.T) {
	t.Parallel()
	alice := &usermodel.User{ID: "u1", FullName: "Alice"}
	r := authRouter(t, map[string]*usermodel.User{"u1": alice})

	token, _, err := jwtsec.Generate(authJWT, "u1")
	require.NoError(t, err)

	rr := call(r, "Bearer "+token)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"fullName":"Alice"`)
}
