package handler

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	platformauth "github.com/zenGate-Global/estatedesk/platform/go/auth"
	platformlogging "github.com/zenGate-Global/estatedesk/platform/go/logging"
	"github.com/zenGate-Global/estatedesk/platform/go/problem"
)

// LoginPath is where requests without a session are sent.
const LoginPath = "/login"

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// Session identifies the signed-in user.
type Session struct {
	UserID string
	Name   string
}

// SessionLookup resolves the session for a request.
type SessionLookup func(r *http.Request) (Session, bool)

// Counter returns the number of records of one kind.
type Counter func(ctx context.Context) (int, error)

// CredentialsSession reads the session from the credentials stored by the auth middleware.
func CredentialsSession(r *http.Request) (Session, bool) {
	creds, ok := platformauth.UserFromContext(r.Context())
	if !ok || creds == nil || creds.ID == "" {
		return Session{}, false
	}
	return Session{UserID: creds.ID, Name: creds.DisplayName()}, true
}

// Handler renders the placeholder dashboard.
type Handler struct {
	logger     *zap.Logger
	session    SessionLookup
	leads      Counter
	properties Counter
}

// New constructs a Handler instance. A nil lookup falls back to CredentialsSession.
func New(logger *zap.Logger, lookup SessionLookup, leads, properties Counter) *Handler {
	if logger == nil {
		panic("logger is required")
	}
	if leads == nil || properties == nil {
		panic("record counters are required")
	}
	if lookup == nil {
		lookup = CredentialsSession
	}

	return &Handler{logger: logger, session: lookup, leads: leads, properties: properties}
}

// Register mounts the dashboard route on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/dashboard", h.Dashboard)
}

type dashboardView struct {
	Name       string
	Leads      string
	Properties string
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(r)
	if !ok {
		http.Redirect(w, r, LoginPath, http.StatusFound)
		return
	}

	view := dashboardView{
		Name:       session.Name,
		Leads:      h.count(r, "leads", h.leads),
		Properties: h.count(r, "properties", h.properties),
	}
	if view.Name == "" {
		view.Name = session.UserID
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "dashboard.html", view); err != nil {
		platformlogging.FromContextOr(r.Context(), h.logger).Error("render dashboard failed", zap.Error(err))
		problem.Write(w, problem.New(http.StatusInternalServerError, "Internal server error",
			"an unexpected error occurred", problem.TypeInternal, nil))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// count renders a counter value, or "unavailable" when the counter fails.
func (h *Handler) count(r *http.Request, kind string, counter Counter) string {
	n, err := counter(r.Context())
	if err != nil {
		platformlogging.FromContextOr(r.Context(), h.logger).Error("dashboard count failed",
			zap.String("kind", kind),
			zap.Error(err),
		)
		return "unavailable"
	}
	return strconv.Itoa(n)
}
