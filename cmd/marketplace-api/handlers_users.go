package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/coopmarket/internal/auth"
	"github.com/MikeMC777/coopmarket/internal/httpx"
	"github.com/MikeMC777/coopmarket/internal/notify"
	"github.com/MikeMC777/coopmarket/internal/user"
)

type tokenRequest struct {
	Token string `json:"token"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type statusRequest struct {
	Status user.Status `json:"status" example:"active"`
}

// registerHandler godoc
// @Summary  Register an account
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    body body user.RegisterRequest true "account"
// @Success  201 {object} httpx.Envelope
// @Router   /auth/register [post]
func registerHandler(svc accountService, pub notify.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req user.RegisterRequest
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		u, err := svc.Register(c.Request.Context(), req)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		msg := "account created, check your email to verify it"
		if u.Status == user.StatusPending {
			pub.Publish(c.Request.Context(), notify.New(notify.TypeRegistrationPending,
				"New "+string(u.Role)+" awaiting approval",
				gin.H{"user_id": u.ID, "email": u.Email, "full_name": u.FullName, "role": u.Role},
			))
			msg = "account created and awaiting administrator approval"
		}
		httpx.CreatedMessage(c, u, msg)
	}
}

func loginHandler(svc accountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req user.LoginRequest
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		if req.Email == "" || req.Password == "" {
			httpx.Error(c, httpx.Invalid("", "email and password are required"))
			return
		}
		resp, err := svc.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, resp)
	}
}

func verifyEmailHandler(svc accountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req tokenRequest
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		if strings.TrimSpace(req.Token) == "" {
			httpx.Error(c, httpx.Invalid("token", "is required"))
			return
		}
		u, err := svc.VerifyEmail(c.Request.Context(), req.Token)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OKMessage(c, u, "email verified")
	}
}

// resendVerificationHandler answers the same way whether or not the address
// is registered.
func resendVerificationHandler(svc accountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req emailRequest
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		if err := svc.ResendVerification(c.Request.Context(), req.Email); err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OKMessage(c, nil, "if the account exists and is unverified, a new link was sent")
	}
}

func forgotPasswordHandler(svc accountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req emailRequest
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		if err := svc.ForgotPassword(c.Request.Context(), req.Email); err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OKMessage(c, nil, "if the account exists, a reset link was sent")
	}
}

func resetPasswordHandler(svc accountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req resetPasswordRequest
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		if strings.TrimSpace(req.Token) == "" {
			httpx.Error(c, httpx.Invalid("token", "is required"))
			return
		}
		if err := svc.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OKMessage(c, nil, "password updated")
	}
}

func meHandler(svc accountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		u, err := svc.Get(c.Request.Context(), id.UserID)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, u)
	}
}

func listUsersHandler(svc accountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := httpx.Paging(c)
		q := user.Query{
			Q:      strings.TrimSpace(c.Query("q")),
			Role:   auth.Role(c.Query("role")),
			Status: user.Status(c.Query("status")),
			Limit:  limit,
			Offset: offset,
		}
		if q.Role != "" && !q.Role.Valid() {
			httpx.Error(c, httpx.Invalid("role", "unknown role"))
			return
		}
		if q.Status != "" && !q.Status.Valid() {
			httpx.Error(c, httpx.Invalid("status", "unknown status"))
			return
		}
		items, err := svc.List(c.Request.Context(), q)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, httpx.NewPage(items, limit, offset))
	}
}

func getUserHandler(svc accountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, u)
	}
}

func updateMeHandler(svc accountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		var req user.UpdateRequest
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		u, err := svc.Update(c.Request.Context(), id.UserID, req)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, u)
	}
}

func deleteMeHandler(svc accountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		if err := svc.Delete(c.Request.Context(), id.UserID); err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.NoContent(c)
	}
}

func setUserStatusHandler(svc accountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statusRequest
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		u, err := svc.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, u)
	}
}

func deleteUserHandler(svc accountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		if id.UserID == c.Param("id") {
			httpx.Fail(c, http.StatusBadRequest, "use DELETE /users/me to delete your own account")
			return
		}
		if err := svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.NoContent(c)
	}
}
