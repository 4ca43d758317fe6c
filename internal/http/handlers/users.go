package handlers

import (
	"log/slog"
	"net/http"

	"github.com/glowcorner/identity-core/internal/http/respond"
	"github.com/glowcorner/identity-core/internal/identity"
	"github.com/glowcorner/identity-core/internal/middleware"
	"github.com/glowcorner/identity-core/internal/models"
	"github.com/glowcorner/identity-core/internal/models/dto"
)

// UsersHandler serves account administration for staff and managers.
type UsersHandler struct {
	svc *identity.Service
	log *slog.Logger
}

// NewUsersHandler constructs the handler.
func NewUsersHandler(svc *identity.Service, logger *slog.Logger) *UsersHandler {
	return &UsersHandler{svc: svc, log: logger}
}

// Register attaches the user routes; every route requires a bearer token.
func (h *UsersHandler) Register(mux *http.ServeMux) {
	mux.Handle("/users/search", middleware.RequireAuth(h.svc, http.HandlerFunc(h.handleSearch)))
	mux.Handle("/users/{id}/role", middleware.RequireAuth(h.svc, http.HandlerFunc(h.handleUpdateRole)))
}

func (h *UsersHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	claims, _ := middleware.ClaimsFrom(r.Context())
	accounts, err := h.svc.SearchAccounts(r.Context(), claims, r.URL.Query().Get("name"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if accounts == nil {
		accounts = []models.Account{}
	}
	respond.JSON(w, http.StatusOK, "ok", accounts)
}

func (h *UsersHandler) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPut) {
		return
	}
	var req dto.UpdateRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	claims, _ := middleware.ClaimsFrom(r.Context())
	account, err := h.svc.UpdateRole(r.Context(), claims, r.PathValue("id"), req.Role)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "role updated", account)
}
