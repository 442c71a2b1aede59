package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	oapimiddleware "github.com/oapi-codegen/nethttp-middleware"

	"github.com/zenGate-Global/estatedesk/platform/go/problem"
)

const bearerSchemeName = "bearerAuth"

var registerCSVDecoder sync.Once

// ValidateBearerAuth satisfies operations that declare bearerAuth by requiring a Bearer
// Authorization header. Token verification itself happens in the JWT middleware.
func ValidateBearerAuth(_ context.Context, input *openapi3filter.AuthenticationInput) error {
	if input == nil || input.SecuritySchemeName != bearerSchemeName {
		return nil
	}

	r := input.RequestValidationInput.Request
	if r == nil {
		return errors.New("no request in validation input")
	}

	authz := r.Header.Get("Authorization")
	if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return errors.New("missing or invalid Authorization header")
	}

	return nil
}

// SpecValidator validates requests against spec and answers violations with problem+json.
// text/csv bodies are accepted as plain strings so import endpoints can be described.
func SpecValidator(spec *openapi3.T) func(http.Handler) http.Handler {
	registerCSVDecoder.Do(func() {
		openapi3filter.RegisterBodyDecoder("text/csv", openapi3filter.FileBodyDecoder)
	})

	return oapimiddleware.OapiRequestValidatorWithOptions(spec, &oapimiddleware.Options{
		Options: openapi3filter.Options{
			AuthenticationFunc: ValidateBearerAuth,
		},
		ErrorHandler: func(w http.ResponseWriter, message string, statusCode int) {
			writeValidationProblem(w, message, statusCode)
		},
		SilenceServersWarning: true,
	})
}

func writeValidationProblem(w http.ResponseWriter, message string, statusCode int) {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		problem.Unauthorized(w, message)
	case http.StatusNotFound:
		problem.Write(w, problem.New(statusCode, "Resource not found", message, problem.TypeNotFound, nil))
	case http.StatusMethodNotAllowed:
		problem.Write(w, problem.New(statusCode, "Method not allowed", message, problem.TypeBadRequest, nil))
	default:
		problem.Write(w, problem.New(http.StatusBadRequest, "Request does not match the API contract", message, problem.TypeValidation, nil))
	}
}
