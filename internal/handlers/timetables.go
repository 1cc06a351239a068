package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/schoollms/apiserver/internal/services"
	"github.com/schoollms/apiserver/internal/store"
	"github.com/schoollms/apiserver/types"
	"go.uber.org/zap"
)

// Year groups offered by the admin timetable filter.
var adminYearGroups = []int{7, 8, 9, 10, 11}

// TimetableHandler serves timetable JSON endpoints and pages.
type TimetableHandler struct {
	timetables *services.TimetableService
	renderer   *Renderer
	logger     *zap.Logger
}

func NewTimetableHandler(timetables *services.TimetableService, renderer *Renderer, logger *zap.Logger) *TimetableHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableHandler{timetables: timetables, renderer: renderer, logger: logger}
}

// TimetableRouter registers the JSON timetable routes.
func TimetableRouter(r chi.Router, h *TimetableHandler) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{userID}", h.GetForUser)
	r.Get("/{userID}/{weekStart}", h.Get)
	r.Put("/{userID}/{weekStart}", h.Update)
	r.Delete("/{userID}/{weekStart}", h.Delete)
}

type CreateTimetableRequest struct {
	UserID    int        `json:"user_id"`
	WeekStart types.Date `json:"week_start"`
	WeekEnd   types.Date `json:"week_end"`
}

type UpdateTimetableRequest struct {
	WeekStart types.Date `json:"week_start"`
	WeekEnd   types.Date `json:"week_end"`
}

// List returns every timetable for admins, filtered by ?teacher= and
// ?year_group=, and the caller's own timetables otherwise.
func (h *TimetableHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := timetableFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, _ := userFromContext(r.Context())
	views, err := h.timetables.List(r.Context(), user, filter)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *TimetableHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTimetableRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.UserID < 1 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	user, _ := userFromContext(r.Context())
	view, err := h.timetables.Create(r.Context(), user, req.UserID, req.WeekStart, req.WeekEnd)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// GetForUser returns the timetable for ?week_start=, or the latest one.
func (h *TimetableHandler) GetForUser(w http.ResponseWriter, r *http.Request) {
	userID, err := intParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, _ := userFromContext(r.Context())

	var view types.TimetableView
	if raw := strings.TrimSpace(r.URL.Query().Get("week_start")); raw != "" {
		weekStart, err := types.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date format")
			return
		}
		view, err = h.timetables.Get(r.Context(), user, userID, weekStart)
		if err != nil {
			respondError(w, r, h.logger, err)
			return
		}
	} else {
		view, err = h.timetables.Latest(r.Context(), user, userID)
		if err != nil {
			respondError(w, r, h.logger, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *TimetableHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, weekStart, ok := timetableKey(w, r)
	if !ok {
		return
	}
	user, _ := userFromContext(r.Context())
	view, err := h.timetables.Get(r.Context(), user, userID, weekStart)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *TimetableHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, weekStart, ok := timetableKey(w, r)
	if !ok {
		return
	}
	var req UpdateTimetableRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	user, _ := userFromContext(r.Context())
	view, err := h.timetables.Update(r.Context(), user, userID, weekStart, req.WeekStart, req.WeekEnd)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *TimetableHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, weekStart, ok := timetableKey(w, r)
	if !ok {
		return
	}
	user, _ := userFromContext(r.Context())
	if err := h.timetables.Delete(r.Context(), user, userID, weekStart); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// View renders the caller's most recent timetable grouped by weekday.
func (h *TimetableHandler) View(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	data := pageData(r, "My timetable")

	view, err := h.timetables.Latest(r.Context(), user, user.ID)
	switch {
	case err == nil:
		data.Timetable = &view
		data.LessonsByDay = groupLessons(view.Lessons)
	case errors.Is(err, store.ErrNotFound):
	default:
		h.renderer.RenderError(w, r, err)
		return
	}
	h.renderer.Render(w, http.StatusOK, "timetable_view.html", data)
}

// AdminList shows every timetable to admins, as JSON or HTML.
func (h *TimetableHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	filter, err := timetableFilter(r)
	if err == nil && !user.IsAdmin() {
		err = fmt.Errorf("%w: only administrators can access this page", services.ErrForbidden)
	}
	var views, all []types.TimetableView
	if err == nil {
		views, err = h.timetables.List(r.Context(), user, filter)
	}
	if err == nil {
		all, err = h.timetables.List(r.Context(), user, services.TimetableFilter{})
	}

	if wantsJSON(r) {
		if err != nil {
			respondError(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, views)
		return
	}
	if err != nil {
		h.renderer.RenderError(w, r, err)
		return
	}
	data := pageData(r, "All timetables")
	data.Timetables = views
	data.Teachers = services.Teachers(all)
	data.YearGroups = adminYearGroups
	data.Filter = filter
	h.renderer.Render(w, http.StatusOK, "admin_timetables.html", data)
}

func timetableKey(w http.ResponseWriter, r *http.Request) (int, types.Date, bool) {
	userID, err := intParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, types.Date{}, false
	}
	weekStart, err := dateParam(r, "weekStart")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format")
		return 0, types.Date{}, false
	}
	return userID, weekStart, true
}

func timetableFilter(r *http.Request) (services.TimetableFilter, error) {
	query := r.URL.Query()
	filter := services.TimetableFilter{Teacher: strings.TrimSpace(query.Get("teacher"))}
	year, err := optionalInt(query.Get("year_group"))
	if err != nil {
		return services.TimetableFilter{}, fmt.Errorf("%w: year_group must be a number", services.ErrInvalidInput)
	}
	if year != nil {
		filter.YearGroup = *year
	}
	return filter, nil
}
