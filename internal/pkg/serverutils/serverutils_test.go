package serverutils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name string    `validate:"required"`
	BBox []float64 `validate:"len=4,dive,gte=0"`
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(sample{Name: "a", BBox: []float64{0, 0, 1, 1}}))

	err := ValidateRequest(sample{BBox: []float64{0, -1, 1, 1}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "is required", verr.Fields["sample.Name"])
	assert.Equal(t, "must be >= 0", verr.Fields["sample.BBox[1]"])

	err = ValidateRequest(sample{Name: "a", BBox: []float64{1}})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "must have length 4", verr.Fields["sample.BBox"])
}

func newApp(h fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/", h)
	return app
}

func decode(t *testing.T, body io.Reader) Response {
	t.Helper()
	var r Response
	require.NoError(t, json.NewDecoder(body).Decode(&r))
	return r
}

func TestErrorHandlerMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{"fiber error", fiber.NewError(fiber.StatusNotFound, "nope"), 404, "nope"},
		{"validation", &ValidationError{Fields: map[string]string{"q": "is required"}}, 400, "validation failed: q is required"},
		{"unknown is hidden", errors.New("pq: password authentication failed"), 500, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newApp(func(*fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)

			assert.Equal(t, tt.code, resp.StatusCode)
			body := decode(t, resp.Body)
			assert.False(t, body.Success)
			assert.Equal(t, tt.message, body.Message)
		})
	}
}

func signed(t *testing.T, secret string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "u-1",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestJwtMiddleware(t *testing.T) {
	handler := func(ctx *fiber.Ctx) error {
		uid, _ := ctx.Locals("user_id").(string)
		return ctx.SendString(uid)
	}

	t.Run("disabled without secret", func(t *testing.T) {
		app := fiber.New()
		app.Get("/", JwtMiddleware(""), handler)

		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	})

	app := fiber.New()
	app.Get("/", JwtMiddleware("s3cret"), handler)

	t.Run("missing token", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		require.NoError(t, err)
		assert.Equal(t, 401, resp.StatusCode)
	})

	t.Run("wrong secret", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+signed(t, "other"))
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 401, resp.StatusCode)
	})

	t.Run("header token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+signed(t, "s3cret"))
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		b, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "u-1", string(b))
	})

	t.Run("query token", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/?token="+signed(t, "s3cret"), nil))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	})
}
