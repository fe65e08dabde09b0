package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"eventtz/internal/errdef"
	"eventtz/internal/event"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method      string
	Path        string
	Query       string
	ContentType string
	RequestID   string
	Body        map[string]any
}

func newTestServer(t *testing.T, status int, response string) (*Client, *recordedRequest) {
	t.Helper()
	got := &recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Method = r.Method
		got.Path = r.URL.Path
		got.Query = r.URL.RawQuery
		got.ContentType = r.Header.Get("Content-Type")
		got.RequestID = r.Header.Get("X-Request-ID")
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			assert.NoError(t, json.Unmarshal(data, &got.Body))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return New(NewHTTPTransport(srv.URL+"/api/", time.Second)), got
}

func TestClient_ListProfiles(t *testing.T) {
	c, got := newTestServer(t, http.StatusOK, `[{"_id":"p1","name":"Alice","timezone":"Asia/Tokyo"},{"_id":"p2","name":"Bob","timezone":"UTC"}]`)

	profiles, err := c.ListProfiles(context.Background())
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/api/profiles", got.Path)
	assert.NotEmpty(t, got.RequestID)
	require.Len(t, profiles, 2)
	assert.Equal(t, "p1", profiles[0].ID)
	assert.Equal(t, "Asia/Tokyo", profiles[0].Timezone)
}

func TestClient_CreateProfileDefaultsToUTC(t *testing.T) {
	c, got := newTestServer(t, http.StatusCreated, `{"_id":"p3","name":"Carol","timezone":"UTC"}`)

	p, err := c.CreateProfile(context.Background(), "Carol", "")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/api/profiles", got.Path)
	assert.Equal(t, "application/json", got.ContentType)
	assert.Equal(t, map[string]any{"name": "Carol", "timezone": "UTC"}, got.Body)
	assert.Equal(t, "p3", p.ID)
}

func TestClient_UpdateProfile(t *testing.T) {
	c, got := newTestServer(t, http.StatusOK, `{"_id":"p1","name":"Alice","timezone":"Europe/Paris"}`)

	p, err := c.UpdateProfile(context.Background(), "p1", "Europe/Paris")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, got.Method)
	assert.Equal(t, "/api/profiles/p1", got.Path)
	assert.Equal(t, map[string]any{"timezone": "Europe/Paris"}, got.Body)
	assert.Equal(t, "Europe/Paris", p.Timezone)
}

func TestClient_ListEvents(t *testing.T) {
	c, got := newTestServer(t, http.StatusOK, `[{"_id":"e1","profiles":[{"_id":"p1","name":"Alice"}],"timezone":"UTC",
		"startDateTime":"2025-06-01T09:00:00.000Z","endDateTime":"2025-06-01T10:00:00.000Z"}]`)

	events, err := c.ListEvents(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, "/api/events", got.Path)
	assert.Equal(t, "profile=p1", got.Query)
	require.Len(t, events, 1)
	assert.Equal(t, "e1", events[0].ID)
	assert.Equal(t, []string{"Alice"}, events[0].ProfileNames())
}

func TestClient_ListAllEvents(t *testing.T) {
	c, got := newTestServer(t, http.StatusOK, `[]`)

	events, err := c.ListEvents(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, "", got.Query)
	assert.Empty(t, events)
	assert.NotNil(t, events)
}

func TestClient_CreateEvent(t *testing.T) {
	c, got := newTestServer(t, http.StatusCreated, `{"_id":"e9","profiles":["p1"],"timezone":"UTC",
		"startDateTime":"2025-06-01T09:00:00Z","endDateTime":"2025-06-01T10:00:00Z","createdAt":"2025-05-01T00:00:00Z"}`)

	payload := event.Payload{
		Profiles:      []string{"p1"},
		Timezone:      "UTC",
		StartDateTime: "2025-06-01T09:00:00Z",
		EndDateTime:   "2025-06-01T10:00:00Z",
	}
	e, err := c.CreateEvent(context.Background(), payload)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/api/events", got.Path)
	assert.Equal(t, map[string]any{
		"profiles":      []any{"p1"},
		"timezone":      "UTC",
		"startDateTime": "2025-06-01T09:00:00Z",
		"endDateTime":   "2025-06-01T10:00:00Z",
	}, got.Body)
	assert.Equal(t, "e9", e.ID)
	assert.NotNil(t, e.CreatedAt)
}

func TestClient_UpdateEvent(t *testing.T) {
	c, got := newTestServer(t, http.StatusOK, `{"_id":"e1","profiles":["p1"],"timezone":"UTC",
		"startDateTime":"2025-06-01T09:00:00Z","endDateTime":"2025-06-01T11:00:00Z"}`)

	_, err := c.UpdateEvent(context.Background(), "e1", event.Payload{Profiles: []string{"p1"}})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, got.Method)
	assert.Equal(t, "/api/events/e1", got.Path)
}

func TestClient_GetEvent(t *testing.T) {
	c, got := newTestServer(t, http.StatusOK, `{"_id":"e1","profiles":["p1"],"timezone":"UTC",
		"startDateTime":"2025-06-01T09:00:00Z","endDateTime":"2025-06-01T11:00:00Z"}`)

	e, err := c.GetEvent(context.Background(), "e1")
	require.NoError(t, err)

	assert.Equal(t, "/api/events/e1", got.Path)
	assert.Equal(t, "e1", e.ID)
}

func TestClient_Errors(t *testing.T) {
	tests := map[string]struct {
		status int
		is     func(error) bool
	}{
		"BadRequest":   {http.StatusBadRequest, errdef.IsBadRequest},
		"Unauthorized": {http.StatusUnauthorized, errdef.IsUnauthorized},
		"Forbidden":    {http.StatusForbidden, errdef.IsForbidden},
		"NotFound":     {http.StatusNotFound, errdef.IsNotFound},
		"Conflict":     {http.StatusConflict, errdef.IsConflict},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			c, _ := newTestServer(t, tt.status, `{"message":"nope"}`)

			_, err := c.GetEvent(context.Background(), "e1")
			require.Error(t, err)
			assert.True(t, tt.is(err), "unexpected error kind: %v", err)
			assert.Contains(t, err.Error(), "nope")
		})
	}

	t.Run("ServerError", func(t *testing.T) {
		c, _ := newTestServer(t, http.StatusInternalServerError, ``)

		_, err := c.ListProfiles(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 500")
		assert.False(t, errdef.IsBadRequest(err))
	})

	t.Run("Unreachable", func(t *testing.T) {
		c := New(NewHTTPTransport("http://127.0.0.1:1", 200*time.Millisecond))

		_, err := c.ListProfiles(context.Background())
		assert.Error(t, err)
	})

	t.Run("MalformedBody", func(t *testing.T) {
		c, _ := newTestServer(t, http.StatusOK, `{"broken"`)

		_, err := c.ListProfiles(context.Background())
		assert.Error(t, err)
	})
}
