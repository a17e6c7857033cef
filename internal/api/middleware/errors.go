package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/QuakeAlert/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/shared/apperror"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/store"
)

// MessageValidationFailed is returned for binding and payload validation errors
const MessageValidationFailed = "Validation failed"

// ErrorHandler renders the last error attached to the request as the failure
// envelope and recovers panics from later stages. Every fault is logged.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				if r == http.ErrAbortHandler {
					panic(r)
				}
				err := fmt.Errorf("panic: %v", r)
				logging.FromContext(c.Request.Context(), logger).Error("Recovered from panic",
					zap.Any("panic", r),
					zap.Stack("stack"))
				_ = c.Error(err)
				render(c, logger, err)
				c.Abort()
			}
		}()

		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		render(c, logger, c.Errors.Last().Err)
	}
}

func render(c *gin.Context, logger *zap.Logger, err error) {
	appErr := Classify(err)
	status := appErr.Status()

	log := logging.FromContext(c.Request.Context(), logger)
	fields := []zap.Field{
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", status),
		zap.String("kind", appErr.Kind.String()),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", fields...)
	} else {
		log.Info("Request rejected", fields...)
	}

	if c.Writer.Written() {
		return
	}
	c.JSON(status, appErr.Response())
}

// Classify maps any error to an application error, first match wins:
// application errors keep their kind, data store errors with a code become
// 400 (409 for unique violations), validation errors become 400 with field
// details, malformed bodies become 400, and everything else is Fatal.
func Classify(err error) *apperror.Error {
	if appErr, ok := apperror.As(err); ok {
		return appErr
	}

	if se, ok := store.AsError(err); ok && se.Code != "" {
		if se.IsUniqueViolation() {
			return &apperror.Error{Kind: apperror.KindConflict, Message: "Resource already exists", Code: se.Code, Err: err}
		}
		return &apperror.Error{Kind: apperror.KindValidation, Message: se.Message, Code: se.Code, Err: err}
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]apperror.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, apperror.FieldError{Field: fieldPath(fe), Message: fieldMessage(fe)})
		}
		appErr := apperror.Validation(MessageValidationFailed, details...)
		appErr.Err = err
		return appErr
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &typeErr):
		appErr := apperror.Validation(MessageValidationFailed, apperror.FieldError{
			Field:   typeErr.Field,
			Message: fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type.Kind()),
		})
		appErr.Err = err
		return appErr
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return &apperror.Error{Kind: apperror.KindValidation, Message: "Malformed JSON body", Err: err}
	case errors.Is(err, io.EOF):
		return &apperror.Error{Kind: apperror.KindValidation, Message: "Request body is required", Err: err}
	}

	return apperror.Fatal(err)
}

// fieldPath is the JSON path of the failing field without the struct name
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "required_without":
		return fmt.Sprintf("%s is required when %s is not set", field, jsonName(fe.Param()))
	case "excluded_with":
		return fmt.Sprintf("%s cannot be combined with %s", field, jsonName(fe.Param()))
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "uuid", "uuid4":
		return field + " must be a valid UUID"
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// jsonName converts a Go field name used in a validator param to snake case
func jsonName(goName string) string {
	var sb strings.Builder
	prevLower := false
	for _, r := range goName {
		upper := r >= 'A' && r <= 'Z'
		if upper {
			if prevLower {
				sb.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		prevLower = !upper
		sb.WriteRune(r)
	}
	return sb.String()
}

var registerOnce sync.Once

// UseJSONFieldNames makes validation errors report json tag names instead of
// Go field names.
func UseJSONFieldNames() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
}
