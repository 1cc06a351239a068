package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/schoollms/apiserver/internal/services"
	"github.com/schoollms/apiserver/types"
	"go.uber.org/zap"
)

// LessonHandler serves lesson JSON endpoints and pages.
type LessonHandler struct {
	lessons  *services.LessonService
	renderer *Renderer
	logger   *zap.Logger
}

func NewLessonHandler(lessons *services.LessonService, renderer *Renderer, logger *zap.Logger) *LessonHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LessonHandler{lessons: lessons, renderer: renderer, logger: logger}
}

// LessonRouter registers lesson routes on the given router.
func LessonRouter(r chi.Router, h *LessonHandler, auth *AuthHandler) {
	r.With(auth.RequirePageUser).Get("/", h.List)
	r.With(auth.RequireUser).Post("/", h.Create)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequirePageUser)
		r.Get("/add/", h.AddForm)
		r.Post("/add/", h.AddSubmit)
		r.Get("/{id}/edit", h.EditForm)
		r.Post("/{id}/edit", h.EditSubmit)
		r.Post("/{id}/delete", h.DeleteSubmit)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

// List returns the caller's lessons as JSON or renders the lesson list.
func (h *LessonHandler) List(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	lessons, err := h.lessons.ListVisible(r.Context(), user)
	if wantsJSON(r) {
		if err != nil {
			respondError(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, lessons)
		return
	}
	if err != nil {
		h.renderer.RenderError(w, r, err)
		return
	}
	data := pageData(r, "Lessons")
	data.Lessons = lessons
	h.renderer.Render(w, http.StatusOK, "lesson_list.html", data)
}

func (h *LessonHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, _ := userFromContext(r.Context())
	lesson, err := h.lessons.GetVisible(r.Context(), user, id)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, lesson)
}

func (h *LessonHandler) Create(w http.ResponseWriter, r *http.Request) {
	var lesson types.Lesson
	if err := decodeJSON(r, &lesson); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	user, _ := userFromContext(r.Context())
	created, err := h.lessons.Create(r.Context(), user, lesson)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *LessonHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var lesson types.Lesson
	if err := decodeJSON(r, &lesson); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	user, _ := userFromContext(r.Context())
	updated, err := h.lessons.Update(r.Context(), user, id, lesson)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *LessonHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, _ := userFromContext(r.Context())
	if err := h.lessons.Delete(r.Context(), user, id); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LessonHandler) AddForm(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	if !user.CanManageLessons() {
		h.renderer.RenderError(w, r, services.ErrForbidden)
		return
	}
	lesson := types.Lesson{DayOfWeek: types.SchoolDays[0]}
	if user.IsTeacher() {
		lesson.Teacher = user.Username
	}
	h.renderForm(w, r, http.StatusOK, "Add lesson", "/lessons/add/", lesson, "")
}

func (h *LessonHandler) AddSubmit(w http.ResponseWriter, r *http.Request) {
	lesson, err := lessonFromForm(r)
	if err != nil {
		h.renderForm(w, r, http.StatusBadRequest, "Add lesson", "/lessons/add/", lesson, err.Error())
		return
	}
	user, _ := userFromContext(r.Context())
	if _, err := h.lessons.Create(r.Context(), user, lesson); err != nil {
		h.formFailed(w, r, "Add lesson", "/lessons/add/", lesson, err)
		return
	}
	http.Redirect(w, r, "/lessons/", http.StatusSeeOther)
}

func (h *LessonHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		h.renderer.RenderError(w, r, services.ErrInvalidInput)
		return
	}
	user, _ := userFromContext(r.Context())
	lesson, err := h.lessons.Editable(r.Context(), user, id)
	if err != nil {
		h.renderer.RenderError(w, r, err)
		return
	}
	h.renderForm(w, r, http.StatusOK, "Edit lesson", editAction(id), lesson, "")
}

func (h *LessonHandler) EditSubmit(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		h.renderer.RenderError(w, r, services.ErrInvalidInput)
		return
	}
	lesson, err := lessonFromForm(r)
	if err != nil {
		h.renderForm(w, r, http.StatusBadRequest, "Edit lesson", editAction(id), lesson, err.Error())
		return
	}
	user, _ := userFromContext(r.Context())
	if _, err := h.lessons.Update(r.Context(), user, id, lesson); err != nil {
		h.formFailed(w, r, "Edit lesson", editAction(id), lesson, err)
		return
	}
	http.Redirect(w, r, "/lessons/", http.StatusSeeOther)
}

func (h *LessonHandler) DeleteSubmit(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		h.renderer.RenderError(w, r, services.ErrInvalidInput)
		return
	}
	user, _ := userFromContext(r.Context())
	if err := h.lessons.Delete(r.Context(), user, id); err != nil {
		h.renderer.RenderError(w, r, err)
		return
	}
	http.Redirect(w, r, "/lessons/", http.StatusSeeOther)
}

// formFailed re-renders the form for input errors and shows the error page
// for everything else.
func (h *LessonHandler) formFailed(w http.ResponseWriter, r *http.Request, title, action string, lesson types.Lesson, err error) {
	status, message := errorStatus(err)
	if status == http.StatusBadRequest {
		h.renderForm(w, r, status, title, action, lesson, message)
		return
	}
	h.renderer.RenderError(w, r, err)
}

func (h *LessonHandler) renderForm(w http.ResponseWriter, r *http.Request, status int, title, action string, lesson types.Lesson, message string) {
	data := pageData(r, title)
	data.Action = action
	data.Days = types.SchoolDays
	data.Lesson = lesson
	data.Error = message
	h.renderer.Render(w, status, "lesson_form.html", data)
}

func editAction(id int) string {
	return "/lessons/" + strconv.Itoa(id) + "/edit"
}

// lessonFromForm reads a lesson from a posted form. The returned lesson is
// filled in as far as possible even when err is set, for redisplay.
func lessonFromForm(r *http.Request) (types.Lesson, error) {
	if err := r.ParseForm(); err != nil {
		return types.Lesson{}, errors.New("invalid form")
	}
	lesson := types.Lesson{
		Subject:   strings.TrimSpace(r.PostFormValue("subject")),
		Teacher:   strings.TrimSpace(r.PostFormValue("teacher")),
		Classroom: strings.TrimSpace(r.PostFormValue("classroom")),
		DayOfWeek: strings.TrimSpace(r.PostFormValue("day_of_week")),
		StartTime: strings.TrimSpace(r.PostFormValue("start_time")),
		EndTime:   strings.TrimSpace(r.PostFormValue("end_time")),
	}
	year, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("year_group")))
	if err != nil {
		return lesson, errors.New("year group must be a number")
	}
	lesson.YearGroup = year
	return lesson, nil
}
