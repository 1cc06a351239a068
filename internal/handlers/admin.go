package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/schoollms/apiserver/internal/services"
	"go.uber.org/zap"
)

// AdminHandler serves account administration and timetable exports.
type AdminHandler struct {
	users   *services.UserService
	auth    *services.AuthService
	exports *services.ExportService
	logger  *zap.Logger
}

func NewAdminHandler(users *services.UserService, auth *services.AuthService, exports *services.ExportService, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{users: users, auth: auth, exports: exports, logger: logger}
}

// AdminRouter registers the JSON admin routes.
func AdminRouter(r chi.Router, h *AdminHandler) {
	r.Get("/users", h.ListUsers)
	r.Post("/users/{username}/unlock", h.Unlock)
	r.Get("/timetables/exports", h.ListExports)
	r.Post("/timetables/export", h.Export)
	r.Get("/timetables/export/*", h.Download)
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	users, err := h.users.List(r.Context(), user)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// Unlock clears the failed-login lockout for a username.
func (h *AdminHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	if err := h.auth.Unlock(user, chi.URLParam(r, "username")); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type ExportResponse struct {
	Key string `json:"key"`
}

// Export snapshots all timetables to object storage. Browser form posts are
// redirected to the download.
func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	key, err := h.exports.Export(r.Context(), user)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	h.logger.Info("timetables exported", zap.String("key", key), zap.String("by", user.Username))
	if isFormBody(r) && !wantsJSON(r) {
		http.Redirect(w, r, "/admin/timetables/export/"+key, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusCreated, ExportResponse{Key: key})
}

// ListExports returns the stored exports, newest first.
func (h *AdminHandler) ListExports(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	exports, err := h.exports.List(r.Context(), user)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, exports)
}

// Download streams a stored export.
func (h *AdminHandler) Download(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	reader, err := h.exports.Open(r.Context(), user, key)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+key[strings.LastIndex(key, "/")+1:]+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Warn("export download interrupted", zap.String("key", key), zap.Error(err))
	}
}
