package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/and161185/goph-accounts/internal/model"
)

func TestProfileClient_CreateProfile(t *testing.T) {
	t.Parallel()

	var got map[string]string
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewProfileClient(srv.URL+"/", srv.Client())
	id := uuid.Must(uuid.NewV4())
	err := c.CreateProfile(context.Background(), model.AccountSummary{
		ID: id, Username: "alice", Name: "Alice A", Email: "alice@example.com",
	})
	require.NoError(t, err)
	require.Equal(t, "/api/create/profile", path)
	require.Equal(t, id.String(), got["user_id"])
	require.Equal(t, "alice", got["username"])
	require.Equal(t, "Alice A", got["name"])
	_, hasEmail := got["email"]
	require.False(t, hasEmail)
}

func TestProfileClient_UpdateUsername_Non2xx(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/update/username", r.URL.Path)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewProfileClient(srv.URL, nil)
	err := c.UpdateUsername(context.Background(), uuid.Must(uuid.NewV4()), "bob")
	require.Error(t, err)
}
