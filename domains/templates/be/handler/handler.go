package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zenGate-Global/estatedesk/platform/go/csvtemplate"
	platformlogging "github.com/zenGate-Global/estatedesk/platform/go/logging"
	"github.com/zenGate-Global/estatedesk/platform/go/problem"
)

// Handler serves the downloadable CSV import templates.
type Handler struct {
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(logger *zap.Logger) *Handler {
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{logger: logger}
}

// Register mounts the template routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/v1/templates/{name}", h.TemplatesGet)
}

func (h *Handler) TemplatesGet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	logger := platformlogging.FromContextOr(r.Context(), h.logger)

	tpl, ok := csvtemplate.Lookup(name)
	if !ok {
		logger.Info("template not found", zap.String("template", name))
		problem.Write(w, problem.New(http.StatusNotFound, "Resource not found",
			fmt.Sprintf("template %q does not exist", name), problem.TypeNotFound, nil))
		return
	}

	var buf bytes.Buffer
	if err := tpl.Render(&buf); err != nil {
		logger.Error("render template failed", zap.String("template", name), zap.Error(err))
		problem.Write(w, problem.New(http.StatusInternalServerError, "Internal server error",
			"an unexpected error occurred", problem.TypeInternal, nil))
		return
	}

	w.Header().Set("Content-Type", csvtemplate.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, tpl.Name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
