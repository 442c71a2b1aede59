package main

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zenGate-Global/estatedesk/contracts"
	platformauth "github.com/zenGate-Global/estatedesk/platform/go/auth"
	platformlogging "github.com/zenGate-Global/estatedesk/platform/go/logging"
	platformmiddleware "github.com/zenGate-Global/estatedesk/platform/go/middleware"
	"github.com/zenGate-Global/estatedesk/platform/go/problem"
)

type routeRegistrar interface {
	Register(r chi.Router)
}

type propertyRoutes interface {
	routeRegistrar
	RegisterPublic(r chi.Router)
}

type routerDeps struct {
	logger         *zap.Logger
	requestTimeout time.Duration
	corsOrigins    []string
	verify         platformauth.VerifyFunc
	ready          func(ctx context.Context) error

	leads      routeRegistrar
	properties propertyRoutes
	templates  routeRegistrar
	dashboard  routeRegistrar
}

// newRouter assembles the HTTP surface. Each contract-backed domain gets its own validator group.
func newRouter(ctx context.Context, deps routerDeps) (http.Handler, error) {
	specs := make(map[string]*openapi3.T, len(contracts.Names()))
	for _, name := range contracts.Names() {
		spec, err := contracts.Load(ctx, name)
		if err != nil {
			return nil, err
		}
		specs[name] = spec
		logSecuritySchemes(deps.logger, name, spec)
	}

	domains := map[string]routeRegistrar{
		"leads":      deps.leads,
		"properties": deps.properties,
		"templates":  deps.templates,
	}
	for name := range domains {
		if _, ok := specs[name]; !ok {
			return nil, fmt.Errorf("contract %q not embedded", name)
		}
	}

	requestTimeout := deps.requestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 15 * time.Second
	}

	rootRouter := chi.NewRouter()
	rootRouter.Use(middleware.RequestID)
	rootRouter.Use(middleware.RealIP)
	rootRouter.Use(middleware.Recoverer)
	rootRouter.Use(middleware.Timeout(requestTimeout))
	rootRouter.Use(platformmiddleware.CORS(deps.corsOrigins))
	rootRouter.Use(platformlogging.RequestLogger(deps.logger, "/healthz", "/readyz"))

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	rootRouter.Get("/readyz", readyHandler(deps.ready, deps.logger))

	registerDocsRoutes(rootRouter, specs, deps.logger)

	deps.properties.RegisterPublic(rootRouter)

	rootRouter.Group(func(r chi.Router) {
		r.Use(platformauth.JWT(deps.verify, nil))
		r.Use(platformmiddleware.RequestTrace)

		deps.dashboard.Register(r)

		for _, name := range contracts.Names() {
			domain, ok := domains[name]
			if !ok {
				continue
			}
			validator := platformmiddleware.SpecValidator(specs[name])
			r.Group(func(r chi.Router) {
				r.Use(validator)
				domain.Register(r)
			})
		}
	})

	return rootRouter, nil
}

func readyHandler(ping func(ctx context.Context) error, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			if err := ping(r.Context()); err != nil {
				platformlogging.FromRequest(r, logger).Warn("readiness check failed", zap.Error(err))
				problem.Write(w, problem.New(http.StatusServiceUnavailable, "Service unavailable", "database is not reachable", problem.TypeInternal, nil))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	}
}

func logSecuritySchemes(logger *zap.Logger, name string, spec *openapi3.T) {
	if spec.Components == nil || len(spec.Components.SecuritySchemes) == 0 {
		logger.Warn("contract declares no security schemes", zap.String("contract", name))
		return
	}

	names := make([]string, 0, len(spec.Components.SecuritySchemes))
	for schemeName := range spec.Components.SecuritySchemes {
		names = append(names, schemeName)
	}
	sort.Strings(names)
	logger.Info("loaded security schemes", zap.String("contract", name), zap.Strings("names", names))
}
