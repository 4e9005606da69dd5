package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestClient(t *testing.T, handler http.Handler, token string) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(srv.URL, token, &http.Client{Timeout: 5 * time.Second}, testLogger())
}

func TestCreateOccurrence(t *testing.T) {
	t.Run("metadata only", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/incidents", r.URL.Path)

			require.NoError(t, r.ParseMultipartForm(1<<20))

			var req NewIncidentRequest
			require.NoError(t, json.Unmarshal([]byte(r.FormValue("incident")), &req))
			assert.Equal(t, "flooded street", req.Description)
			assert.Equal(t, "key-1", req.ClientKey)
			assert.True(t, req.Urgency)

			_, _, err := r.FormFile("photo")
			assert.Error(t, err, "no photo part expected")

			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(IncidentResponse{ID: 77})
		}), "")

		id, err := c.CreateOccurrence(context.Background(), &NewIncidentRequest{
			Title:       "Ocorrência",
			Description: "flooded street",
			Urgency:     true,
			ClientKey:   "key-1",
		}, "", "")
		require.NoError(t, err)
		assert.Equal(t, int64(77), id)
	})

	t.Run("with photo attachment", func(t *testing.T) {
		photoPath := filepath.Join(t.TempDir(), "scene.jpg")
		require.NoError(t, os.WriteFile(photoPath, []byte("jpeg-bytes"), 0o600))

		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseMultipartForm(1<<20))

			f, hdr, err := r.FormFile("photo")
			require.NoError(t, err)
			defer f.Close()

			assert.Equal(t, "scene.jpg", hdr.Filename)

			data, err := io.ReadAll(f)
			require.NoError(t, err)
			assert.Equal(t, "jpeg-bytes", string(data))

			json.NewEncoder(w).Encode(IncidentResponse{ID: 5})
		}), "")

		id, err := c.CreateOccurrence(context.Background(), &NewIncidentRequest{
			Description: "x",
		}, photoPath, "")
		require.NoError(t, err)
		assert.Equal(t, int64(5), id)
	})

	t.Run("bearer token attached", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			json.NewEncoder(w).Encode(IncidentResponse{ID: 1})
		}), "secret")

		_, err := c.CreateOccurrence(context.Background(), &NewIncidentRequest{}, "", "")
		require.NoError(t, err)
	})

	t.Run("server error", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "database down", http.StatusInternalServerError)
		}), "")

		_, err := c.CreateOccurrence(context.Background(), &NewIncidentRequest{}, "", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "HTTP 500")
		assert.Contains(t, err.Error(), "database down")
	})

	t.Run("missing media file", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(IncidentResponse{ID: 1})
		}), "")

		_, err := c.CreateOccurrence(context.Background(), &NewIncidentRequest{},
			"/nonexistent/photo.jpg", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "photo")
	})

	t.Run("response without id", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(IncidentResponse{})
		}), "")

		_, err := c.CreateOccurrence(context.Background(), &NewIncidentRequest{}, "", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no id")
	})
}

func TestListIncidents(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/incidents", r.URL.Path)
		json.NewEncoder(w).Encode([]IncidentResponse{{ID: 1}, {ID: 2}})
	}), "")

	incidents, err := c.ListIncidents(context.Background())
	require.NoError(t, err)
	assert.Len(t, incidents, 2)
}

func TestListUserIncidents(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/incidents/user/42", r.URL.Path)
		json.NewEncoder(w).Encode([]IncidentResponse{{ID: 9, UserID: 42}})
	}), "")

	incidents, err := c.ListUserIncidents(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, incidents, 1)
	assert.Equal(t, int64(42), incidents[0].UserID)
}

func TestGetIncident(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/incidents/7", r.URL.Path)
			json.NewEncoder(w).Encode(IncidentResponse{ID: 7})
		}), "")

		incident, err := c.GetIncident(context.Background(), 7)
		require.NoError(t, err)
		require.NotNil(t, incident)
		assert.Equal(t, int64(7), incident.ID)
	})

	t.Run("not found is nil not error", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}), "")

		incident, err := c.GetIncident(context.Background(), 8)
		require.NoError(t, err)
		assert.Nil(t, incident)
	})
}
