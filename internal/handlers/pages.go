package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/schoollms/apiserver/internal/services"
	"go.uber.org/zap"
)

// PageHandler serves the login, registration and dashboard pages.
type PageHandler struct {
	auth     *services.AuthService
	renderer *Renderer
	logger   *zap.Logger
}

func NewPageHandler(auth *services.AuthService, renderer *Renderer, logger *zap.Logger) *PageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageHandler{auth: auth, renderer: renderer, logger: logger}
}

// PageRouter registers the session pages. requireUser guards the dashboard.
func PageRouter(r chi.Router, h *PageHandler, requireUser func(http.Handler) http.Handler) {
	r.Get("/", h.Index)
	r.Get("/login", h.Index)
	r.Post("/login", h.Login)
	r.Get("/logout", h.Logout)
	r.Get("/register", h.RegisterForm)
	r.Post("/register", h.Register)
	r.With(requireUser).Get("/dashboard", h.Dashboard)
}

// Index renders the login page.
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, "login.html", pageData(r, "Log in"))
}

// Login checks the form credentials, sets the session cookie and redirects
// to the dashboard. Failures re-render the login page.
func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.loginFailed(w, r, "", http.StatusBadRequest, "invalid form")
		return
	}
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		h.loginFailed(w, r, username, http.StatusBadRequest, "username and password are required")
		return
	}

	token, _, err := h.auth.Login(r.Context(), username, password)
	if err != nil {
		status, message := errorStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("login failed", zap.String("username", username), zap.Error(err))
		}
		h.loginFailed(w, r, username, status, message)
		return
	}
	setSessionCookie(w, token, h.auth.TokenTTL())
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (h *PageHandler) loginFailed(w http.ResponseWriter, r *http.Request, username string, status int, message string) {
	data := pageData(r, "Log in")
	data.Error = message
	data.Form = map[string]string{"username": username}
	h.renderer.Render(w, status, "login.html", data)
}

// Logout revokes the session and returns to the login page.
func (h *PageHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.auth.Logout(sessionToken(r))
	clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *PageHandler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, "register.html", pageData(r, "Register"))
}

// Register creates an account from the form and redirects to the login page.
func (h *PageHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.registerFailed(w, r, http.StatusBadRequest, "invalid form")
		return
	}

	yearGroup, err := optionalInt(r.PostFormValue("year_group"))
	if err != nil {
		h.registerFailed(w, r, http.StatusBadRequest, "year group must be a number")
		return
	}
	var subjects []string
	if raw := strings.TrimSpace(r.PostFormValue("subjects")); raw != "" {
		subjects = strings.Split(raw, ",")
	}

	_, err = h.auth.Register(r.Context(), services.RegisterInput{
		Username:  r.PostFormValue("username"),
		Password:  r.PostFormValue("password"),
		Email:     r.PostFormValue("email"),
		Role:      r.PostFormValue("role"),
		YearGroup: yearGroup,
		Subjects:  subjects,
	})
	if err != nil {
		status, message := errorStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("registration failed", zap.Error(err))
		}
		h.registerFailed(w, r, status, message)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *PageHandler) registerFailed(w http.ResponseWriter, r *http.Request, status int, message string) {
	data := pageData(r, "Register")
	data.Error = message
	data.Form = map[string]string{
		"username":   r.PostFormValue("username"),
		"email":      r.PostFormValue("email"),
		"year_group": r.PostFormValue("year_group"),
		"subjects":   r.PostFormValue("subjects"),
	}
	h.renderer.Render(w, status, "register.html", data)
}

// Dashboard greets the signed-in user.
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	data := pageData(r, "Dashboard")
	if data.User == nil {
		h.renderer.RenderError(w, r, services.ErrUnauthenticated)
		return
	}
	h.renderer.Render(w, http.StatusOK, "dashboard.html", data)
}
