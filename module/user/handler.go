package user

import (
	"net/http"

	"VChat/global"
	"VChat/logger"
	midsec "VChat/middleware/security"
	"VChat/module/user/service"
	"VChat/service/mgo"
	"VChat/tools/errs"

	"github.com/gin-gonic/gin"
)

// Validation failures ride on HTTP 200 with success=false; only the auth
// middleware produces 401/404.

func fail(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, gin.H{"success": false, "message": msg})
}

// HandlerSignup POST /api/auth/signup
func HandlerSignup(c *gin.Context) {
	var p service.SignupParams
	if err := c.ShouldBindJSON(&p); err != nil {
		fail(c, "No data provided")
		return
	}

	user, token, err := service.Signup(c.Request.Context(), mgo.GetDB(), global.JWTOptions(), p)
	if err != nil {
		if ce := errs.Code(err); ce != nil {
			fail(c, ce.Msg)
			return
		}
		logger.Errorf("[user] signup: %v", err)
		fail(c, errs.ErrInternal.Msg)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"userData": user,
		"token":    token,
		"message":  "Account created successfully",
	})
}

// HandlerLogin POST /api/auth/login
func HandlerLogin(c *gin.Context) {
	var p struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&p); err != nil {
		fail(c, "No data provided")
		return
	}

	user, token, err := service.Login(c.Request.Context(), mgo.GetDB(), global.JWTOptions(), p.Email, p.Password)
	if err != nil {
		if ce := errs.Code(err); ce != nil {
			fail(c, ce.Msg)
			return
		}
		logger.Errorf("[user] login: %v", err)
		fail(c, errs.ErrInternal.Msg)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"userData": user,
		"token":    token,
		"message":  "Login successfully",
	})
}

// HandlerCheck GET /api/auth/check — the middleware already resolved the
// token to a live user.
func HandlerCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "user": midsec.CurrentUser(c)})
}

// HandlerUpdateProfile PUT /api/auth/update-profile
func HandlerUpdateProfile(c *gin.Context) {
	me := midsec.CurrentUser(c)

	var p service.ProfileParams
	if err := c.ShouldBindJSON(&p); err != nil {
		fail(c, "No data provided")
		return
	}

	user, err := service.UpdateProfile(c.Request.Context(), mgo.GetDB(), me.ID, p)
	if err != nil {
		if ce := errs.Code(err); ce != nil {
			fail(c, ce.Msg)
			return
		}
		logger.Errorf("[user] update profile: %v", err)
		fail(c, errs.ErrInternal.Msg)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}
