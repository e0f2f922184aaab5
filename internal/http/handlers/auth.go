package handlers

import (
	"net/http"
	"strings"

	"github.com/dailydrop/server/internal/apierr"
	"github.com/dailydrop/server/internal/auth"
	"github.com/dailydrop/server/internal/http/response"
	"github.com/dailydrop/server/internal/metrics"
	"github.com/dailydrop/server/internal/users"
)

// AuthHandler handles the password + OTP login and reset endpoints
type AuthHandler struct {
	otpService  *auth.OTPService
	authService *auth.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(otpService *auth.OTPService, authService *auth.AuthService) *AuthHandler {
	return &AuthHandler{otpService: otpService, authService: authService}
}

// sendLoginOTPRequest is the request body for POST /user.sendOTPForLogin
type sendLoginOTPRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// loginRequest is the request body for POST /user.login
type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	OTP      string `json:"otp" validate:"required"`
}

// sendResetOTPRequest is the request body for POST /user.sendOTPForForgotPassword
type sendResetOTPRequest struct {
	Email string `json:"email" validate:"required"`
}

// resetPasswordRequest is the request body for POST /user.resetPassword
type resetPasswordRequest struct {
	Email           string `json:"email" validate:"required"`
	OTP             string `json:"otp" validate:"required"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

// sessionResponse is returned by login and reset
type sessionResponse struct {
	User  *users.Profile `json:"user"`
	Token string         `json:"token"`
}

// HandleSendLoginOTP handles POST /user.sendOTPForLogin
func (h *AuthHandler) HandleSendLoginOTP(w http.ResponseWriter, r *http.Request) {
	var req sendLoginOTPRequest
	if err := decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	err := h.otpService.RequestLoginOTP(r.Context(), normalizeEmail(req.Email), req.Password)
	countOTP("login", err)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, true)
}

// HandleLogin handles POST /user.login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	user, token, err := h.authService.Login(r.Context(), normalizeEmail(req.Email), req.Password, strings.TrimSpace(req.OTP))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, sessionResponse{User: users.ProfileOf(user), Token: token})
}

// HandleSendResetOTP handles POST /user.sendOTPForForgotPassword
func (h *AuthHandler) HandleSendResetOTP(w http.ResponseWriter, r *http.Request) {
	var req sendResetOTPRequest
	if err := decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	err := h.otpService.RequestResetOTP(r.Context(), normalizeEmail(req.Email))
	countOTP("reset", err)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, true)
}

// HandleResetPassword handles POST /user.resetPassword
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	user, token, err := h.authService.ResetPassword(r.Context(), normalizeEmail(req.Email),
		strings.TrimSpace(req.OTP), req.Password, req.ConfirmPassword)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, sessionResponse{User: users.ProfileOf(user), Token: token})
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

func countOTP(purpose string, err error) {
	outcome := "sent"
	if err != nil {
		outcome = strings.ToLower(apierr.As(err).Code)
	}
	metrics.OTPRequestsTotal.WithLabelValues(purpose, outcome).Inc()
}
