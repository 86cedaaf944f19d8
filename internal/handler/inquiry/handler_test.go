package inquiry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bulatminnakhmetov/property-site/internal/client/email"
	"github.com/bulatminnakhmetov/property-site/internal/handler/respond"
	authservice "github.com/bulatminnakhmetov/property-site/internal/service/auth"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Send(ctx context.Context, msg email.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func post(h *InquiryHandler, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.Inquire(rr, httptest.NewRequest(http.MethodPost, "/api/inquire", bytes.NewBufferString(body)))
	return rr
}

func newHandler(provider email.Provider, agent string) *InquiryHandler {
	return NewInquiryHandler(provider, agent, respond.NewResponder(nil, authservice.ConfigStatus{}), nil)
}

func TestInquiryHandler_Inquire(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		provider := new(MockProvider)
		provider.On("Send", mock.Anything, mock.MatchedBy(func(msg email.Message) bool {
			return msg.To == "agent@example.com" &&
				msg.ReplyTo == "ann@example.com" &&
				msg.Subject == "Inquiry about maple from Ann"
		})).Return(nil)

		rr := post(newHandler(provider, "agent@example.com"), `{"propertySlug":" Maple ","name":" Ann ","email":"ann@example.com","message":"Is it available?"}`)

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp InquiryResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.True(t, resp.OK)
		_, err := uuid.Parse(resp.ID)
		assert.NoError(t, err)
		provider.AssertExpectations(t)
	})

	t.Run("Forwarding failure is not surfaced", func(t *testing.T) {
		provider := new(MockProvider)
		provider.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp down"))

		rr := post(newHandler(provider, "agent@example.com"), `{"propertySlug":"maple","name":"Ann","email":"ann@example.com"}`)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("No agent configured", func(t *testing.T) {
		provider := new(MockProvider)
		rr := post(newHandler(provider, ""), `{"propertySlug":"maple","name":"Ann","email":"ann@example.com"}`)
		assert.Equal(t, http.StatusOK, rr.Code)
		provider.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})

	cases := []struct {
		name     string
		body     string
		expected string
	}{
		{"Blank name", `{"propertySlug":"maple","name":"   ","email":"ann@example.com"}`, "Missing required fields."},
		{"Missing slug", `{"name":"Ann","email":"ann@example.com"}`, "Missing required fields."},
		{"Invalid email", `{"propertySlug":"maple","name":"Ann","email":"ann"}`, "must be a valid email address"},
		{"Invalid JSON", `{"name":`, "Invalid JSON"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			provider := new(MockProvider)
			rr := post(newHandler(provider, "agent@example.com"), tc.body)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, rr.Body.String(), tc.expected)
			assert.Contains(t, rr.Body.String(), `"ok":false`)
			provider.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
		})
	}
}
