package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/bilgisen/newsroom/internal/logger"
	"github.com/bilgisen/newsroom/internal/models"
	"github.com/gofiber/fiber/v2"
)

// TokenLocal is the fiber.Locals key holding the request token
const TokenLocal = "token"

// AuthConfig defines the config for the token middleware
type AuthConfig struct {
	// Next skips the middleware when it returns true.
	// Optional. Default: nil
	Next func(c *fiber.Ctx) bool

	// Token is the expected token. An empty token disables the check.
	Token string

	// Unauthorized answers a request with a missing or wrong token.
	// Optional. Default: HTTP 200 with a code 2 envelope
	Unauthorized fiber.Handler

	// Header is the header carrying the token.
	// Optional. Default: "X-Auth-Token"
	Header string
}

// ConfigDefault is the default config
var ConfigDefault = AuthConfig{
	Unauthorized: func(c *fiber.Ctx) error {
		logger.Get().Warn().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("ip", c.IP()).
			Msg("Request without valid token")

		// the client recognizes code 2 only on a successful transport status
		return c.Status(fiber.StatusOK).JSON(models.Envelope{
			Code: models.CodeLoginRequired,
			Msg:  "login required",
		})
	},
	Header: "X-Auth-Token",
}

// TokenAuth checks the request token against cfg.Token
func TokenAuth(config ...AuthConfig) fiber.Handler {
	cfg := ConfigDefault
	if len(config) > 0 {
		cfg = config[0]
		if cfg.Unauthorized == nil {
			cfg.Unauthorized = ConfigDefault.Unauthorized
		}
		if cfg.Header == "" {
			cfg.Header = ConfigDefault.Header
		}
	}

	return func(c *fiber.Ctx) error {
		if cfg.Next != nil && cfg.Next(c) {
			return c.Next()
		}

		token := RequestToken(c, cfg.Header)
		c.Locals(TokenLocal, token)

		if cfg.Token == "" {
			return c.Next()
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Token)) != 1 {
			return cfg.Unauthorized(c)
		}
		return c.Next()
	}
}

// RequestToken reads the token from the query, the form body, header or a
// bearer Authorization header, in that order.
func RequestToken(c *fiber.Ctx, header string) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	if token := c.FormValue("token"); token != "" {
		return token
	}
	if token := c.Get(header); token != "" {
		return token
	}
	if auth := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
