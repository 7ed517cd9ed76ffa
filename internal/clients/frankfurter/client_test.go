package frankfurter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUSDJPY(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest", r.URL.Path)
		assert.Equal(t, "USD", r.URL.Query().Get("from"))
		assert.Equal(t, "JPY", r.URL.Query().Get("to"))
		w.Write([]byte(`{"amount":1.0,"base":"USD","date":"2026-08-28","rates":{"JPY":150.87}}`))
	}))
	defer server.Close()

	client := NewClientWithBaseURL(server.URL, zerolog.Nop())
	rate, err := client.GetUSDJPY(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 150.87, rate.Rate)
	assert.Equal(t, "frankfurter", rate.Source)
}

func TestGetUSDJPY_MissingRate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"amount":1.0,"base":"USD","date":"2026-08-28","rates":{}}`))
	}))
	defer server.Close()

	client := NewClientWithBaseURL(server.URL, zerolog.Nop())
	_, err := client.GetUSDJPY(context.Background())

	assert.Error(t, err)
}

func TestGetUSDJPY_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClientWithBaseURL(server.URL, zerolog.Nop())
	_, err := client.GetUSDJPY(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
