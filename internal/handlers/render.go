package handlers

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/schoollms/apiserver/internal/services"
	"github.com/schoollms/apiserver/types"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templatesFS embed.FS

const layoutTemplate = "layout.html"

var templateFuncs = template.FuncMap{
	"join": strings.Join,
}

// PageData is the view model shared by every page.
type PageData struct {
	Title        string
	User         *types.User
	Error        string
	Form         map[string]string
	Action       string
	Days         []string
	Lesson       types.Lesson
	Lessons      []types.Lesson
	Timetable    *types.TimetableView
	LessonsByDay []DayLessons
	Timetables   []types.TimetableView
	Teachers     []string
	YearGroups   []int
	Filter       services.TimetableFilter
}

// DayLessons is one weekday column of a timetable.
type DayLessons struct {
	Day     string
	Lessons []types.Lesson
}

// Renderer executes the embedded page templates inside the shared layout.
type Renderer struct {
	pages  map[string]*template.Template
	logger *zap.Logger
}

// NewRenderer parses every embedded page against the layout.
func NewRenderer(logger *zap.Logger) (*Renderer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	layout, err := template.New(layoutTemplate).Funcs(templateFuncs).ParseFS(templatesFS, "templates/"+layoutTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	files, err := fs.Glob(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		name := path.Base(file)
		if name == layoutTemplate {
			continue
		}
		page, err := layout.Clone()
		if err != nil {
			return nil, err
		}
		if page, err = page.ParseFS(templatesFS, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		pages[name] = page
	}
	return &Renderer{pages: pages, logger: logger}, nil
}

// Render writes the named page with status. The page is rendered to a
// buffer before any header is written.
func (rd *Renderer) Render(w http.ResponseWriter, status int, name string, data PageData) {
	page, ok := rd.pages[name]
	if !ok {
		rd.logger.Error("unknown template", zap.String("template", name))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := page.ExecuteTemplate(&buf, layoutTemplate, data); err != nil {
		rd.logger.Error("failed to render template", zap.String("template", name), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// RenderError shows err on the error page with its mapped status.
func (rd *Renderer) RenderError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := errorStatus(err)
	if status == http.StatusInternalServerError {
		rd.logger.Error("page request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	data := PageData{Title: http.StatusText(status), Error: message}
	if user, ok := userFromContext(r.Context()); ok {
		data.User = &user
	}
	rd.Render(w, status, "error.html", data)
}

func pageData(r *http.Request, title string) PageData {
	data := PageData{Title: title}
	if user, ok := userFromContext(r.Context()); ok {
		data.User = &user
	}
	return data
}

func groupLessons(lessons []types.Lesson) []DayLessons {
	byDay := types.GroupByDay(lessons)
	days := make([]DayLessons, 0, len(types.SchoolDays))
	for _, day := range types.SchoolDays {
		days = append(days, DayLessons{Day: day, Lessons: byDay[day]})
	}
	return days
}
