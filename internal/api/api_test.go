// Marquee - Cast Popularity Ranking for Media Libraries
// Copyright 2026 D. Beaumont (dbeaumont-media)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbeaumont-media/marquee

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/dbeaumont-media/marquee/internal/config"
	"github.com/dbeaumont-media/marquee/internal/enrich"
	"github.com/dbeaumont-media/marquee/internal/library"
	"github.com/dbeaumont-media/marquee/internal/models"
	"github.com/dbeaumont-media/marquee/internal/ranking"
	"github.com/dbeaumont-media/marquee/internal/websocket"
)

type testServer struct {
	srv  *httptest.Server
	lib  *library.Library
	stab *ranking.Stabilizer
}

// newTestServer wires a full API stack with an instant popularity lookup
// that scores each person at float64(id).
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	lib := library.New()
	cache := enrich.NewCache(enrich.DefaultBatchSize, nil)
	lookup := func(ctx context.Context, id models.PersonID) (float64, error) {
		return float64(id), nil
	}
	stab := ranking.NewStabilizer(lib, cache, lookup, ranking.Config{WindowSize: 20})
	lib.SetNotifier(stab)

	hub := websocket.NewHub()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = stab.Serve(ctx) }()
	go func() { _ = hub.RunWithContext(ctx) }()

	cfg := &config.ServerConfig{Addr: ":0"}
	handler := NewHandler(lib, stab, hub, nil)
	srv := httptest.NewServer(NewRouter(cfg, handler))
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, lib: lib, stab: stab}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := ts.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeResp(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if got := resp.Header.Get("X-Request-ID"); got == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestAddItemAndRanking(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/v1/library/items", AddItemRequest{
		ID:    "movie-1",
		Title: "Heat",
		Cast: []CastCreditRequest{
			{PersonID: 1, Name: "Al Pacino"},
			{PersonID: 2, Name: "Robert De Niro"},
		},
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}

	// The instant lookup settles quickly; poll until it does.
	deadline := time.Now().Add(2 * time.Second)
	var snap ranking.Snapshot
	for {
		r := ts.do(t, http.MethodGet, "/api/v1/ranking", nil)
		decodeResp(t, r, &snap)
		if snap.State == ranking.StateSettled && len(snap.Entries) == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("ranking never settled: %+v", snap)
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Equal counts, so person 2 (higher popularity) ranks first.
	if snap.Entries[0].PersonID != 2 || snap.Entries[1].PersonID != 1 {
		t.Errorf("order = [%d %d], want [2 1]", snap.Entries[0].PersonID, snap.Entries[1].PersonID)
	}
}

func TestAddItemValidation(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/v1/library/items", AddItemRequest{Title: "No ID"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	var body errorResponse
	decodeResp(t, resp, &body)
	if body.Error.Code != "validation_failed" {
		t.Errorf("code = %q, want validation_failed", body.Error.Code)
	}
}

func TestAddItemMalformedBody(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/api/v1/library/items",
		bytes.NewBufferString("{not json"))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := ts.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestSetWatchedNotFound(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/v1/library/items/ghost/watched", SetWatchedRequest{Watched: true})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestSetWatched(t *testing.T) {
	ts := newTestServer(t)
	ts.lib.Add(models.MediaItem{ID: "movie-1", Title: "Heat"})

	resp := ts.do(t, http.MethodPost, "/api/v1/library/items/movie-1/watched", SetWatchedRequest{Watched: true})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	items := ts.lib.Items()
	if len(items) != 1 || !items[0].Watched {
		t.Errorf("item not marked watched: %+v", items)
	}
}

func TestRemoveItem(t *testing.T) {
	ts := newTestServer(t)
	ts.lib.Add(models.MediaItem{ID: "movie-1", Title: "Heat"})

	resp := ts.do(t, http.MethodDelete, "/api/v1/library/items/movie-1", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if ts.lib.Len() != 0 {
		t.Errorf("library length = %d, want 0", ts.lib.Len())
	}

	// Removing an absent item still succeeds.
	resp = ts.do(t, http.MethodDelete, "/api/v1/library/items/movie-1", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("repeat status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
}

func TestSetFilter(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPut, "/api/v1/ranking/filter", SetFilterRequest{UnwatchedOnly: true})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if !ts.lib.Filter().UnwatchedOnly {
		t.Error("filter not applied")
	}
}

func TestSetFilterInvalidRange(t *testing.T) {
	ts := newTestServer(t)

	after := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	before := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	resp := ts.do(t, http.MethodPut, "/api/v1/ranking/filter", SetFilterRequest{
		AddedAfter:  after,
		AddedBefore: before,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestSetWindowValidation(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPut, "/api/v1/ranking/window", SetWindowRequest{Window: 0})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("window=0 status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	resp = ts.do(t, http.MethodPut, "/api/v1/ranking/window", SetWindowRequest{Window: 10})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("window=10 status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/metrics", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}
