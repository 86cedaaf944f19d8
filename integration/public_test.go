package integration

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	propertyhandler "github.com/bulatminnakhmetov/property-site/internal/handler/property"
)

func TestPublicAPI(t *testing.T) {
	env := LoadEnv(t)

	t.Run("List properties", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, env.AppURL+"/api/properties", nil)
		require.NoError(t, err)
		resp, body, err := env.Do(req, true)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var out propertyhandler.SummariesResponse
		require.NoError(t, json.Unmarshal(body, &out))
		assert.True(t, out.OK)
		assert.NotNil(t, out.Properties)
	})

	t.Run("Unknown property", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, env.AppURL+"/api/properties/"+TestSlug(), nil)
		require.NoError(t, err)
		resp, _, err := env.Do(req, true)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Inquiry", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, env.AppURL+"/api/inquire",
			strings.NewReader(`{"propertySlug":"it","name":"Integration","email":"it@example.com"}`))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		resp, body, err := env.Do(req, true)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	})

	t.Run("Me", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, env.AppURL+"/api/admin/me", nil)
		require.NoError(t, err)
		resp, body, err := env.Do(req, false)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var me map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &me))
		assert.Equal(t, true, me["allowed"])
	})
}
