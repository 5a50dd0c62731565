package api

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerPassesRequestThrough(t *testing.T) {
	app := fiber.New()
	app.Use(NewLogger())
	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestLoggerUsesForwardedAddress(t *testing.T) {
	var logOutput bytes.Buffer
	originalLogger := log.Logger
	log.Logger = zerolog.New(&logOutput)
	defer func() { log.Logger = originalLogger }()

	app := fiber.New()
	app.Use(NewLogger())
	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})

	request := httptest.NewRequest("GET", "/ping", nil)
	request.Header.Set(fiber.HeaderXForwardedFor, "10.20.30.40")

	resp, err := app.Test(request)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Contains(t, logOutput.String(), "10.20.30.40")
}
