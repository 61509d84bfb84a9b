package jwtware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// jwtFromHeader returns a function that extracts token from the request header.
// When authScheme is set and present it is stripped, otherwise the whole
// value is used.
func jwtFromHeader(header, authScheme string) func(c *fiber.Ctx) (string, error) {
	return func(c *fiber.Ctx) (string, error) {
		value := strings.TrimSpace(c.Get(header))
		if value == "" {
			return "", ErrJWTMissingOrMalformed
		}

		if authScheme != "" {
			l := len(authScheme)
			if len(value) > l && strings.EqualFold(value[:l], authScheme) && value[l] == ' ' {
				value = strings.TrimSpace(value[l+1:])
			}
		}

		if value == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return value, nil
	}
}

// jwtFromQuery returns a function that extracts token from the query string.
func jwtFromQuery(param string) func(c *fiber.Ctx) (string, error) {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Query(param)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

// jwtFromParam returns a function that extracts token from the url param string.
func jwtFromParam(param string) func(c *fiber.Ctx) (string, error) {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Params(param)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

// jwtFromCookie returns a function that extracts token from the named cookie.
func jwtFromCookie(name string) func(c *fiber.Ctx) (string, error) {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}
