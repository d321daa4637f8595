package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chronochess/progress/config"
	"github.com/chronochess/progress/internal/models"
)

func newTestClient(url string) *Client {
	return NewClient(config.RemoteConfig{
		Enabled: true,
		BaseURL: url,
		APIKey:  "test-key",
		Timeout: 5,
	})
}

func TestEnsureUserGuestWhenDisabled(t *testing.T) {
	c := NewClient(config.RemoteConfig{Enabled: false})
	id, err := c.EnsureUser(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "" {
		t.Fatalf("expected guest id, got %q", id)
	}
}

func TestEnsureUserGuestOnRejectedKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	id, err := newTestClient(srv.URL).EnsureUser(context.Background())
	if err != nil {
		t.Fatalf("rejected key should be a guest, not an error: %v", err)
	}
	if id != "" {
		t.Fatalf("expected guest id, got %q", id)
	}
}

func TestFetchAndUpsertRoundTrip(t *testing.T) {
	var stored Save
	var haveSave bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.Method {
		case http.MethodGet:
			if r.URL.Path == "/auth/user" {
				json.NewEncoder(w).Encode(map[string]string{"id": "user-1"})
				return
			}
			if !haveSave {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(stored)
		case http.MethodPut:
			if err := json.NewDecoder(r.Body).Decode(&stored); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			haveSave = true
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	ctx := context.Background()

	userID, err := c.EnsureUser(ctx)
	if err != nil || userID != "user-1" {
		t.Fatalf("ensure user: id=%q err=%v", userID, err)
	}

	save, err := c.Fetch(ctx, userID, DefaultSlot)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if save != nil {
		t.Fatalf("expected nil for missing save, got %+v", save)
	}

	want := Save{
		Achievements: []models.Achievement{{ID: "first_win", Claimed: true, UnlockedTimestamp: 42}},
		UpdatedAt:    42,
	}
	if err := c.Upsert(ctx, userID, DefaultSlot, want); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	save, err = c.Fetch(ctx, userID, DefaultSlot)
	if err != nil {
		t.Fatalf("fetch after upsert: %v", err)
	}
	if save == nil || len(save.Achievements) != 1 || save.Achievements[0].ID != "first_win" || !save.Achievements[0].Claimed {
		t.Fatalf("round trip mismatch: %+v", save)
	}
}
