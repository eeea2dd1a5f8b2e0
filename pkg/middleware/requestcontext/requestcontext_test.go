package requestcontext

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, config ClientIPConfig) *fiber.App {
	t.Helper()
	withClientIP, err := WithClientIP(config)
	require.NoError(t, err)

	app := fiber.New()
	app.Use(New(WithRequestId(), withClientIP))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{
			"ip":        GetClientIP(c.UserContext()),
			"requestId": GetRequestId(c.UserContext()),
		})
	})
	return app
}

func TestWithClientIP(t *testing.T) {
	testCases := []struct {
		name       string
		config     ClientIPConfig
		headers    map[string]string
		expectedIP string
		status     int
	}{
		{
			name:       "trusted header",
			config:     ClientIPConfig{TrustedHeader: "CF-Connecting-IP"},
			headers:    map[string]string{"CF-Connecting-IP": "203.0.113.7", "X-Forwarded-For": "198.51.100.1"},
			expectedIP: "203.0.113.7",
		},
		{
			name:       "invalid trusted header falls back to forwarded",
			config:     ClientIPConfig{TrustedHeader: "CF-Connecting-IP"},
			headers:    map[string]string{"CF-Connecting-IP": "unknown", "X-Forwarded-For": "198.51.100.1"},
			expectedIP: "198.51.100.1",
		},
		{
			name:       "walks back over trusted proxies",
			config:     ClientIPConfig{TrustedProxiesIP: []string{"10.0.0.0/8"}},
			headers:    map[string]string{"X-Forwarded-For": "1.1.1.1, 203.0.113.7, 10.0.0.2"},
			expectedIP: "203.0.113.7",
		},
		{
			name:       "all proxies trusted",
			config:     ClientIPConfig{TrustedProxiesIP: []string{"10.0.0.0/8"}},
			headers:    map[string]string{"X-Forwarded-For": "10.0.0.3, 10.0.0.2"},
			expectedIP: "10.0.0.3",
		},
		{
			name:    "reject spoofable forwarded header",
			config:  ClientIPConfig{EnableRejectMalformedRequest: true},
			headers: map[string]string{"X-Forwarded-For": "1.1.1.1"},
			status:  http.StatusForbidden,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(t, tc.config)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			if tc.status != 0 {
				assert.Equal(t, tc.status, resp.StatusCode)
				return
			}
			require.Equal(t, http.StatusOK, resp.StatusCode)
			var body map[string]string
			require.NoError(t, decodeJSON(resp, &body))
			assert.Equal(t, tc.expectedIP, body["ip"])
			assert.NotEmpty(t, body["requestId"])
			assert.Equal(t, body["requestId"], resp.Header.Get(fiber.HeaderXRequestID))
		})
	}
}

func TestWithClientIPInvalidRange(t *testing.T) {
	_, err := WithClientIP(ClientIPConfig{TrustedProxiesIP: []string{"10.0.0.0/33"}})
	assert.Error(t, err)
}

func TestWithRequestIdKeepsClientId(t *testing.T) {
	app := newTestApp(t, ClientIPConfig{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(fiber.HeaderXRequestID, "req-1")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, decodeJSON(resp, &body))
	assert.Equal(t, "req-1", body["requestId"])
}

func decodeJSON(resp *http.Response, v any) error {
	return json.NewDecoder(resp.Body).Decode(v)
}
