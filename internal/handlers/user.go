package handlers

import (
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/bilitade/hubbo/internal/handlers/render"
	"github.com/bilitade/hubbo/internal/handlers/userctx"
	"github.com/bilitade/hubbo/internal/logger"
	"github.com/bilitade/hubbo/internal/models"
)

type userResponse struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	Active      bool      `json:"active"`
	Approved    bool      `json:"approved"`
	CreatedAt   time.Time `json:"created_at"`
	Roles       []string  `json:"roles"`
	Permissions []string  `json:"permissions"`
}

func newUserResponse(u models.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Username:    u.Username,
		Active:      u.Active,
		Approved:    u.Approved,
		CreatedAt:   u.CreatedAt,
		Roles:       sortedKeys(u.RoleNames()),
		Permissions: sortedKeys(u.Permissions()),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func handleUserMe() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		render.JSON(w, newUserResponse(user))
	})
}

func handleListUsers(users userService, l logger.Logger) http.Handler {
	type response struct {
		Users []userResponse `json:"users"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		list, err := users.ListUsers(r.Context())
		if err != nil {
			l.Error("listing users failed", "error", err.Error())
			render.AppError(w, err)
			return
		}

		resp := response{Users: make([]userResponse, 0, len(list))}
		for _, u := range list {
			resp.Users = append(resp.Users, newUserResponse(u))
		}

		render.JSON(w, resp)
	})
}
