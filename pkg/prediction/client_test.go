package prediction

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestPredictAllDecodesResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/predict-all", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"id":"S1","RISKLevel":"High Risk","Reasons":["Low attendance"]},{"id":"S2","RISKLevel":"No Risk","Reasons":["None"]}]}`))
	}))
	defer server.Close()

	client, err := New(server.URL+"/", time.Second, zerolog.Nop())
	require.NoError(t, err)

	results, err := client.PredictAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "S1", results[0].ID)
	require.Equal(t, "High Risk", results[0].Level)
	require.Equal(t, []string{"Low attendance"}, results[0].Reasons)
}

func TestPredictAllRejectsSchemaViolations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"id":42,"RISKLevel":"High Risk"}]}`))
	}))
	defer server.Close()

	client, err := New(server.URL, time.Second, zerolog.Nop())
	require.NoError(t, err)

	_, err = client.PredictAll(context.Background())
	require.ErrorIs(t, err, ErrInvalidResponse)
}

func TestPredictAllRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := New(server.URL, time.Second, zerolog.Nop())
	require.NoError(t, err)

	_, err = client.PredictAll(context.Background())
	require.ErrorIs(t, err, ErrInvalidResponse)
}

func TestNewRequiresURL(t *testing.T) {
	_, err := New("  ", time.Second, zerolog.Nop())
	require.ErrorIs(t, err, ErrNotConfigured)
}
