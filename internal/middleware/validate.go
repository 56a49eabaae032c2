package middleware

import (
	"errors"
	"strings"

	"github.com/bilgisen/newsroom/internal/logger"
	"github.com/bilgisen/newsroom/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// QueryLocal is the fiber.Locals key holding the validated query struct
const QueryLocal = "queryParams"

// Validator is a struct that holds the validator instance
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// Validate validates s and returns the failed fields keyed by their lower-camel name
func (v *Validator) Validate(s any) map[string]string {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	fields := make(map[string]string)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fields["_"] = err.Error()
		return fields
	}
	for _, fe := range verrs {
		name := fe.Field()
		fields[strings.ToLower(name[:1])+name[1:]] = fe.Tag()
	}
	return fields
}

// Defaulter is implemented by query structs that carry default values
type Defaulter interface {
	Defaults()
}

// ValidateQuery parses the query string into a fresh T per request, validates
// it and stores the *T under QueryLocal.
func ValidateQuery[T any]() fiber.Handler {
	v := NewValidator()

	return func(c *fiber.Ctx) error {
		params := new(T)
		if d, ok := any(params).(Defaulter); ok {
			d.Defaults()
		}

		if err := c.QueryParser(params); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(models.Envelope{
				Code: models.CodeValidation,
				Msg:  "invalid query parameters: " + err.Error(),
			})
		}

		if fields := v.Validate(params); fields != nil {
			return c.Status(fiber.StatusBadRequest).JSON(models.Envelope{
				Code: models.CodeValidation,
				Data: fields,
				Msg:  "invalid query parameters",
			})
		}

		c.Locals(QueryLocal, params)
		return c.Next()
	}
}

// Query returns the struct stored by ValidateQuery
func Query[T any](c *fiber.Ctx) *T {
	params, _ := c.Locals(QueryLocal).(*T)
	return params
}

// ErrorHandler turns an error that escaped the handlers into an envelope
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	}

	code := models.CodeInternal
	msg := "internal error"
	switch {
	case status == fiber.StatusNotFound:
		code, msg = models.CodeNotFound, fe.Message
	case status == fiber.StatusRequestEntityTooLarge:
		code, msg = models.CodeValidation, "request body too large"
	case status >= 400 && status < 500:
		code, msg = models.CodeValidation, fe.Message
	}

	logger.Get().Error().
		Err(err).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", status).
		Msg("HTTP error")

	return c.Status(status).JSON(models.Envelope{Code: code, Msg: msg})
}
