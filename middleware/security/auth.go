package security

import (
	"context"
	"net/http"
	"strings"

	"VChat/logger"
	usermodel "VChat/module/user/model"
	"VChat/tools/errs"
	jwtsec "VChat/tools/security"

	"github.com/gin-gonic/gin"
)

// CtxUserKey is where the middleware stores the authenticated *model.User.
const CtxUserKey = "authUser"

type Options struct {
	JWT jwtsec.Options
	// LoadUser resolves the token subject to a live account.
	LoadUser func(ctx context.Context, id string) (*usermodel.User, error)
}

// Middleware enforces `Authorization: Bearer <token>` on protected routes:
// missing/invalid token -> 401, valid token for a vanished user -> 404,
// anything unexpected -> 500.
func Middleware(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				gin.H{"success": false, "message": errs.ErrTokenMissing.Msg})
			return
		}

		userID, err := jwtsec.Verify(opts.JWT, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				gin.H{"success": false, "message": errs.ErrTokenInvalid.Msg})
			return
		}

		user, err := opts.LoadUser(c.Request.Context(), userID)
		if err != nil {
			if errs.ErrUserNotFound.Is(err) {
				c.AbortWithStatusJSON(http.StatusNotFound,
					gin.H{"success": false, "message": errs.ErrUserNotFound.Msg})
				return
			}
			logger.Errorf("[auth] load user %s: %v", userID, err)
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				gin.H{"success": false, "message": errs.ErrInternal.Msg})
			return
		}

		c.Set(CtxUserKey, user)
		c.Next()
	}
}

// CurrentUser returns the user attached by Middleware, or nil on an
// unprotected route.
func CurrentUser(c *gin.Context) *usermodel.User {
	v, ok := c.Get(CtxUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*usermodel.User)
	return user
}

func bearerToken(c *gin.Context) string {
	authz := strings.TrimSpace(c.GetHeader("Authorization"))
	if authz == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[len("bearer "):])
}
