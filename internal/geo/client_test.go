package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSearchReturnsBestCandidate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		require.Equal(t, "12 rue de la Paix 75002 Paris", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"features":[{"geometry":{"coordinates":[2.331,48.869]},
"properties":{"label":"12 Rue de la Paix 75002 Paris","city":"Paris","postcode":"75002","score":0.97}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	got, err := c.Search(context.Background(), "12 rue de la Paix 75002 Paris")
	require.NoError(t, err)
	require.Equal(t, "Paris", got.City)
	require.Equal(t, "75002", got.Postcode)
	require.InDelta(t, 48.869, got.Latitude, 1e-9)
	require.InDelta(t, 2.331, got.Longitude, 1e-9)
}

func TestSearchRejectsLowScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"features":[{"geometry":{"coordinates":[2.3,48.8]},
"properties":{"label":"approx","city":"Paris","postcode":"75000","score":0.2}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.Search(context.Background(), "adresse illisible")
	require.ErrorIs(t, err, ErrNoMatch)
}

func TestSearchEmptyFeatureSet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"features":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.Search(context.Background(), "nulle part")
	require.ErrorIs(t, err, ErrNoMatch)
}
