package main

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const specsPlaceholder = "/*__SPECS__*/"

const swaggerUIPage = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>EstateDesk API - Swagger UI</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
    <style>body{margin:0} #swagger-ui{max-width:1400px;margin:0 auto}</style>
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-standalone-preset.js"></script>
    <script>
      const urls = ` + specsPlaceholder + `;
      window.ui = SwaggerUIBundle({
        urls: urls,
        "urls.primaryName": urls.length ? urls[0].name : "",
        dom_id: "#swagger-ui",
        deepLinking: true,
        presets: [SwaggerUIBundle.presets.apis, SwaggerUIStandalonePreset],
        layout: "StandaloneLayout"
      });
    </script>
  </body>
</html>`

type docLink struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// registerDocsRoutes serves Swagger UI over the embedded contracts and their JSON rendering.
func registerDocsRoutes(router chi.Router, specs map[string]*openapi3.T, logger *zap.Logger) {
	router.Get("/docs", docsUIHandler(specs, logger))
	router.Get("/openapi/{name}.json", openapiJSONHandler(specs, logger))
}

func docsUIHandler(specs map[string]*openapi3.T, logger *zap.Logger) http.HandlerFunc {
	links, err := json.Marshal(docLinks(specs))
	if err != nil {
		logger.Error("marshal docs links", zap.Error(err))
		links = []byte("[]")
	}
	page := []byte(strings.Replace(swaggerUIPage, specsPlaceholder, string(links), 1))

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(page)
	}
}

func openapiJSONHandler(specs map[string]*openapi3.T, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		spec, ok := specs[name]
		if !ok {
			http.NotFound(w, r)
			return
		}

		b, err := spec.MarshalJSON()
		if err != nil {
			logger.Error("marshal openapi json", zap.String("name", name), zap.Error(err))
			http.Error(w, "failed to marshal OpenAPI", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(b)
	}
}

// docLinks lists the contracts in name order for the Swagger UI picker.
func docLinks(specs map[string]*openapi3.T) []docLink {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	links := make([]docLink, 0, len(names))
	for _, name := range names {
		links = append(links, docLink{URL: "/openapi/" + name + ".json", Name: name})
	}
	return links
}
