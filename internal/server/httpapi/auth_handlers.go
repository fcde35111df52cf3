package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/contactbook/internal/common"
	"github.com/gorilla/mux"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusUnprocessableEntity, "username, email and password are required")
		return
	}

	user, err := s.authService.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrEmailTaken):
			writeError(w, http.StatusConflict, "Email is used")
		case errors.Is(err, common.ErrUsernameTaken):
			writeError(w, http.StatusConflict, "Name is used")
		default:
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// handleLogin accepts form-encoded credentials, OAuth2 password-grant style.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		writeError(w, http.StatusUnprocessableEntity, "username and password are required")
		return
	}

	pair, err := s.authService.Login(r.Context(), username, password)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrEmailNotConfirmed):
			writeError(w, http.StatusUnauthorized, "Email not confirmed")
		case errors.Is(err, common.ErrorUnauthorized):
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
		default:
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, newTokenResponse(pair.AccessToken, pair.RefreshToken))
}

// handleRefreshToken reads the refresh token from a JSON body.
func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}

	pair, err := s.authService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrRefreshTokenStale):
			writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		default:
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, newTokenResponse(pair.AccessToken, pair.RefreshToken))
}

func (s *Server) handleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	already, err := s.authService.ConfirmEmail(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrInvalidToken):
			writeError(w, http.StatusUnprocessableEntity, "Invalid token for email verification")
		case errors.Is(err, common.ErrorNotFound):
			writeError(w, http.StatusBadRequest, "Verification error")
		default:
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	if already {
		writeMessage(w, http.StatusOK, "Your email is already confirmed")
		return
	}
	writeMessage(w, http.StatusOK, "Email confirmed")
}

type emailRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleRequestEmail(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusUnprocessableEntity, "email is required")
		return
	}

	already, err := s.authService.RequestConfirmationEmail(r.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorNotFound):
			writeMessage(w, http.StatusOK, "Wrong mail")
		default:
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	if already {
		writeMessage(w, http.StatusOK, "Your email is already confirmed")
		return
	}
	writeMessage(w, http.StatusOK, "Check your email for confirmation.")
}

func (s *Server) handleRequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusUnprocessableEntity, "email is required")
		return
	}

	if err := s.authService.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeMessage(w, http.StatusOK, "A reset link has been sent to your email.")
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusUnprocessableEntity, "token is required")
		return
	}

	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		writeError(w, http.StatusUnprocessableEntity, "password is required")
		return
	}

	if err := s.authService.ResetPassword(r.Context(), token, req.Password); err != nil {
		switch {
		case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrorNotFound):
			writeError(w, http.StatusBadRequest, "Invalid or expired token")
		default:
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	writeMessage(w, http.StatusOK, "Password has been reset")
}
