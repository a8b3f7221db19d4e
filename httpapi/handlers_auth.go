package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	goSessionAuth "github.com/MrEthical07/goSessionAuth"
	"github.com/MrEthical07/goSessionAuth/middleware"
)

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if err := decode(w, r, &body); err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := a.engine.Register(r.Context(), goSessionAuth.RegisterInput{
		Email:     body.Email,
		Password:  body.Password,
		FirstName: body.FirstName,
		LastName:  body.LastName,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	success(w, http.StatusCreated, "User registered successfully. Please check your email to verify your account.", res)
}

func (a *API) verifyEmail(w http.ResponseWriter, r *http.Request) {
	err := a.engine.VerifyEmail(r.Context(), chi.URLParam(r, "userId"), chi.URLParam(r, "token"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	success(w, http.StatusOK, "Email verified successfully", nil)
}

type emailRequest struct {
	Email string `json:"email"`
}

func (a *API) resendVerification(w http.ResponseWriter, r *http.Request) {
	var body emailRequest
	if err := decode(w, r, &body); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.engine.ResendVerification(r.Context(), body.Email); err != nil {
		a.fail(w, r, err)
		return
	}
	success(w, http.StatusOK, "Verification email sent", nil)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := decode(w, r, &body); err != nil {
		a.fail(w, r, err)
		return
	}
	presented, _ := middleware.RefreshToken(r)

	res, err := a.engine.Login(r.Context(), goSessionAuth.LoginInput{
		Email:        body.Email,
		Password:     body.Password,
		RefreshToken: presented,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}

	if res.Outcome == goSessionAuth.OutcomeTwoFactor {
		success(w, http.StatusOK, "Two-factor authentication code sent", map[string]string{"userId": res.UserID})
		return
	}
	a.writeAuth(w, http.StatusOK, "Login successful", res.Auth)
}

type verifyLoginRequest struct {
	UserID string `json:"userId"`
	Code   string `json:"code"`
}

func (a *API) verifyLoginTwoFactor(w http.ResponseWriter, r *http.Request) {
	var body verifyLoginRequest
	if err := decode(w, r, &body); err != nil {
		a.fail(w, r, err)
		return
	}
	presented, _ := middleware.RefreshToken(r)

	res, err := a.engine.VerifyLoginTwoFactor(r.Context(), goSessionAuth.VerifyLoginInput{
		UserID:       body.UserID,
		Code:         body.Code,
		RefreshToken: presented,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.writeAuth(w, http.StatusOK, "Login successful", res)
}

func (a *API) refreshToken(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.RefreshToken(r)

	res, err := a.engine.Refresh(r.Context(), token)
	if err != nil {
		if goSessionAuth.KindOf(err) == goSessionAuth.KindUnauthorized {
			a.clearCookies(w)
		}
		a.fail(w, r, err)
		return
	}
	a.writeAuth(w, http.StatusOK, "Token refreshed successfully", res)
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	if err := a.engine.Logout(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	a.clearCookies(w)
	success(w, http.StatusOK, "Logged out successfully", nil)
}

func (a *API) logoutAll(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	n, err := a.engine.LogoutAll(r.Context(), id.UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.clearCookies(w)
	success(w, http.StatusOK, "Logged out from all sessions", map[string]int64{"sessionsDeleted": n})
}

func (a *API) requestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var body emailRequest
	if err := decode(w, r, &body); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.engine.RequestPasswordReset(r.Context(), body.Email); err != nil {
		a.fail(w, r, err)
		return
	}
	success(w, http.StatusOK, "Password reset email sent", nil)
}

type resetPasswordRequest struct {
	UserID   string `json:"userId"`
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (a *API) resetPassword(w http.ResponseWriter, r *http.Request) {
	var body resetPasswordRequest
	if err := decode(w, r, &body); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.engine.ResetPassword(r.Context(), body.UserID, body.Token, body.Password); err != nil {
		a.fail(w, r, err)
		return
	}
	success(w, http.StatusOK, "Password reset successfully", nil)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (a *API) changePassword(w http.ResponseWriter, r *http.Request) {
	var body changePasswordRequest
	if err := decode(w, r, &body); err != nil {
		a.fail(w, r, err)
		return
	}
	if body.NewPassword != body.ConfirmPassword {
		v := &goSessionAuth.ValidationError{}
		v.Add("confirmPassword", "Passwords don't match")
		a.fail(w, r, v)
		return
	}

	id, _ := middleware.IdentityFromContext(r.Context())
	res, err := a.engine.ChangePassword(r.Context(), id.UserID, body.CurrentPassword, body.NewPassword)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if res.TwoFactorRequired {
		success(w, http.StatusOK, "Two-factor authentication code sent", map[string]bool{"twoFactorRequired": true})
		return
	}
	success(w, http.StatusOK, "Password changed successfully", map[string]bool{"twoFactorRequired": false})
}

type verifyChangePasswordRequest struct {
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

func (a *API) verifyChangePassword(w http.ResponseWriter, r *http.Request) {
	var body verifyChangePasswordRequest
	if err := decode(w, r, &body); err != nil {
		a.fail(w, r, err)
		return
	}
	id, _ := middleware.IdentityFromContext(r.Context())
	if err := a.engine.VerifyChangePassword(r.Context(), id.UserID, body.Code, body.NewPassword); err != nil {
		a.fail(w, r, err)
		return
	}
	success(w, http.StatusOK, "Password changed successfully", nil)
}

func (a *API) toggleTwoFactor(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	action, err := a.engine.ToggleTwoFactor(r.Context(), id.UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	success(w, http.StatusOK, "Verification code sent", map[string]string{"action": string(action)})
}

type codeRequest struct {
	Code string `json:"code"`
}

func (a *API) verifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var body codeRequest
	if err := decode(w, r, &body); err != nil {
		a.fail(w, r, err)
		return
	}
	id, _ := middleware.IdentityFromContext(r.Context())
	enabled, err := a.engine.VerifyTwoFactor(r.Context(), id.UserID, body.Code)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	message := "Two-factor authentication disabled"
	if enabled {
		message = "Two-factor authentication enabled"
	}
	success(w, http.StatusOK, message, map[string]bool{"isTwoFactorEnabled": enabled})
}

func (a *API) googleAuth(w http.ResponseWriter, r *http.Request) {
	var body codeRequest
	if err := decode(w, r, &body); err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := a.engine.GoogleAuth(r.Context(), body.Code)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.writeAuth(w, http.StatusOK, "Google authentication successful", res)
}
