// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/ecgscan/internal/platform/middleware"
	requestutil "github.com/taibuivan/ecgscan/internal/platform/request"
	"github.com/taibuivan/ecgscan/internal/platform/respond"
	"github.com/taibuivan/ecgscan/internal/platform/sec"
	"github.com/taibuivan/ecgscan/internal/platform/validate"
	"github.com/taibuivan/ecgscan/pkg/pagination"
	"github.com/taibuivan/ecgscan/pkg/slice"
)

// AdminRoutes returns the admin-only identity routes.
//
// Every route runs [middleware.Guard.Authenticate] first and the role check
// second, so anonymous callers get 401 and non-admins get 403.
//
// # Endpoints
//   - GET /users      : Paginated, masked identity list (caller excluded).
//   - GET /users/{id} : Single masked identity.
func (handler *Handler) AdminRoutes(guard *middleware.Guard) chi.Router {
	router := chi.NewRouter()

	router.Use(guard.Authenticate)
	router.Use(middleware.RequireRole(sec.RoleAdmin))

	router.Get("/users", handler.listUsers)
	router.Get("/users/{id}", handler.getUser)

	return router
}

func (handler *Handler) listUsers(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	params := pagination.FromRequest(request)
	users, total, err := handler.authService.ListUsers(request.Context(), principal.UserID, params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	views := slice.Map(users, NewAdminView)

	respond.Paginated(writer, "Users retrieved", views, pagination.NewMeta(params.Page, params.Limit, total))
}

func (handler *Handler) getUser(writer http.ResponseWriter, request *http.Request) {
	id := requestutil.Param(request, "id")

	validator := &validate.Validator{}
	if err := validator.UUID("id", id).Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.authService.GetUser(request.Context(), id)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, "User retrieved", NewAdminView(user))
}
