package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mydiary/mall-server/internal/domain"
	"github.com/mydiary/mall-server/internal/http/middleware"
	"github.com/mydiary/mall-server/internal/http/response"
)

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := h.auth.Register(r.Context(), req)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Verification email sent successfully",
		"userId":  u.ID,
	})
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := h.auth.Login(r.Context(), req)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	h.cookies.Set(w, sess.ID)
	response.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"userId":  sess.UserID,
	})
}

// Logout always clears the cookie; a missing or stale session is not an error.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), h.cookies.Read(r)); err != nil {
		response.FromError(w, r, err)
		return
	}
	h.cookies.Clear(w)
	writeMessage(w, http.StatusOK, "Logout successful")
}

// UserName answers for the session user, or for ?userId= when anonymous.
func (h *Handlers) UserName(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	if userID == 0 {
		raw := r.URL.Query().Get("userId")
		if raw == "" {
			response.BadRequest(w, "No user ID provided")
			return
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.BadRequest(w, "invalid userId")
			return
		}
		userID = id
	}
	name, err := h.auth.UserName(r.Context(), userID)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]string{"name": name})
}

func (h *Handlers) UserInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.auth.UserInfo(r.Context(), middleware.UserID(r))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, info)
}

func (h *Handlers) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.VerifyEmail(r.Context(), r.URL.Query().Get("token")); err != nil {
		response.FromError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Email verified successfully")
}

func (h *Handlers) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req domain.EmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.auth.ResendVerification(r.Context(), req.Email); err != nil {
		response.FromError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "If the account exists, a verification email has been sent")
}

func (h *Handlers) CheckEmail(w http.ResponseWriter, r *http.Request) {
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil || email == "" {
		response.BadRequest(w, "invalid email")
		return
	}
	if err := h.auth.EmailAvailable(r.Context(), email); err != nil {
		response.FromError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Email is available")
}

func (h *Handlers) CheckPhone(w http.ResponseWriter, r *http.Request) {
	phone, err := url.PathUnescape(chi.URLParam(r, "phone"))
	if err != nil || phone == "" {
		response.BadRequest(w, "invalid phone")
		return
	}
	if err := h.auth.PhoneAvailable(r.Context(), phone); err != nil {
		response.FromError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Phone number is available")
}

func (h *Handlers) FindAccount(w http.ResponseWriter, r *http.Request) {
	var req domain.FindAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	masked, err := h.auth.FindAccount(r.Context(), req)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]string{"email": masked})
}

func (h *Handlers) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req domain.PasswordResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.passwords.RequestReset(r.Context(), req); err != nil {
		response.FromError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password reset link sent")
}

func (h *Handlers) VerifyResetToken(w http.ResponseWriter, r *http.Request) {
	userID, grant, err := h.passwords.VerifyResetToken(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{
		"userId":     userID,
		"resetGrant": grant,
	})
}

func (h *Handlers) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdatePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.passwords.UpdatePassword(r.Context(), req, middleware.UserID(r)); err != nil {
		response.FromError(w, r, err)
		return
	}
	// The caller's own session, if any, was ended with the others.
	h.cookies.Clear(w)
	writeMessage(w, http.StatusOK, "Password updated successfully")
}
