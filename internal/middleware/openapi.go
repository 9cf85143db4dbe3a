package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// OpenAPIValidationMiddleware rejects requests whose path parameters,
// query or body do not match doc. Routes doc does not describe pass
// through untouched.
func OpenAPIValidationMiddleware(doc *openapi3.T, logger *zap.Logger) (gin.HandlerFunc, error) {
	doc.Servers = nil
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to build OpenAPI router: %w", err)
	}

	options := &openapi3filter.Options{
		AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		MultiError:         false,
	}

	return func(c *gin.Context) {
		route, pathParams, err := router.FindRoute(c.Request)
		if err != nil {
			if !errors.Is(err, routers.ErrPathNotFound) && !errors.Is(err, routers.ErrMethodNotAllowed) {
				logger.Warn("OpenAPI route lookup failed",
					zap.Error(err),
					zap.String("path", c.Request.URL.Path),
				)
			}
			c.Next()
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options:    options,
		}
		if err := openapi3filter.ValidateRequest(c.Request.Context(), input); err != nil {
			logger.Warn("request rejected by OpenAPI validation",
				zap.Error(err),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String(requestIDKey, c.GetString(requestIDKey)),
			)
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Request does not match the API description",
				"details": err.Error(),
			})
			return
		}

		c.Next()
	}, nil
}
