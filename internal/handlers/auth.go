package handlers

import (
	"net/http"
	"time"

	"github.com/bilitade/hubbo/internal/handlers/render"
	"github.com/bilitade/hubbo/internal/handlers/userctx"
	"github.com/bilitade/hubbo/internal/logger"
	"github.com/bilitade/hubbo/internal/models"
)

// tokenPairResponse is the wire shape of an issued session.
type tokenPairResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func newTokenPairResponse(pair models.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:  pair.Access.Value,
		RefreshToken: pair.Refresh.Value,
		TokenType:    "Bearer",
		ExpiresIn:    int64(time.Until(pair.Access.ExpiresAt).Seconds()),
		ExpiresAt:    pair.Access.ExpiresAt,
	}
}

func handleRegister(auth authService, l logger.Logger) http.Handler {
	type request struct {
		Username string `json:"username" validate:"required,min=2,max=50"`
		Password string `json:"password" validate:"required,max=128"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := auth.Register(r.Context(), data.Username, data.Password)
		if err != nil {
			l.Info("registration rejected", "username", data.Username, "error", err.Error())
			render.AppError(w, err)
			return
		}

		render.JSON(w, newTokenPairResponse(pair))
	})
}

func handleLogin(auth authService, l logger.Logger) http.Handler {
	type request struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := auth.Login(r.Context(), data.Username, data.Password)
		if err != nil {
			l.Info("login rejected", "username", data.Username, "error", err.Error())
			render.AppError(w, err)
			return
		}

		render.JSON(w, newTokenPairResponse(pair))
	})
}

func handleTokenRefresh(auth authService, l logger.Logger) http.Handler {
	type request struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := auth.Refresh(r.Context(), data.RefreshToken)
		if err != nil {
			l.Info("refresh rejected", "error", err.Error())
			render.AppError(w, err)
			return
		}

		render.JSON(w, newTokenPairResponse(pair))
	})
}

func handleLogout(auth authService, l logger.Logger) http.Handler {
	type request struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		// Revoking an already revoked or unknown token is still a logout
		if err := auth.Logout(r.Context(), data.RefreshToken); err != nil {
			l.Error("logout failed", "error", err.Error())
			render.AppError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

func handleChangePassword(auth authService, l logger.Logger) http.Handler {
	type request struct {
		CurrentPassword string `json:"current_password" validate:"required"`
		NewPassword     string `json:"new_password" validate:"required,max=128"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		if err := auth.ChangePassword(r.Context(), user.ID, data.CurrentPassword, data.NewPassword); err != nil {
			l.Info("password change rejected", "user_id", user.ID.String(), "error", err.Error())
			render.AppError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}
