package handler

import (
	"errors"
	"net/http"

	"visionchat/internal/common"
	"visionchat/internal/logger"
	"visionchat/internal/middleware"
	"visionchat/internal/service"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type userResponse struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// LoginHandler handles POST /api/auth/login with form fields username and
// password, where username is the email.
func LoginHandler(auth *service.AuthService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if missingFields(w, r, logger, "username", "password") {
			return
		}

		token, err := auth.Login(r.Context(), r.FormValue("username"), r.FormValue("password"))
		if errors.Is(err, common.ErrUnauthorized) {
			w.Header().Set("WWW-Authenticate", "Bearer")
			respondError(w, logger, http.StatusUnauthorized, "Incorrect email or password")
			return
		}
		if err != nil {
			respondServiceError(w, logger, err)
			return
		}

		respondJSON(w, logger, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
	}
}

// SignupHandler handles POST /api/auth/signup with form fields email,
// password and full_name.
func SignupHandler(auth *service.AuthService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if missingFields(w, r, logger, "email", "password", "full_name") {
			return
		}

		_, err := auth.Signup(r.Context(), r.FormValue("email"), r.FormValue("password"), r.FormValue("full_name"))
		if errors.Is(err, common.ErrConflict) {
			respondError(w, logger, http.StatusBadRequest, "Email already registered")
			return
		}
		if err != nil {
			respondServiceError(w, logger, err)
			return
		}

		respondJSON(w, logger, http.StatusOK, messageResponse{Message: "User created successfully"})
	}
}

// MeHandler handles GET /api/auth/me.
func MeHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			respondServiceError(w, logger, common.ErrUnauthorized)
			return
		}
		respondJSON(w, logger, http.StatusOK, userResponse{ID: user.ID, Email: user.Email, FullName: user.FullName})
	}
}
