package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kalro/lexwatch/internal/database"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func doJSON(t *testing.T, srv *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		json.Unmarshal(rec.Body.Bytes(), &decoded)
	}
	return rec, decoded
}

func TestStatusRoute(t *testing.T) {
	db := openTestDB(t)
	db.InsertWatch("acme", database.WatchEntity, "Acme Corp", nil, 240)

	srv := New(db)
	rec, body := doJSON(t, srv, "GET", "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["watches"] != float64(1) || body["active_watches"] != float64(1) {
		t.Errorf("unexpected status body: %v", body)
	}
	if body["polling_paused"] != false {
		t.Error("expected polling unpaused")
	}
}

func TestCreateAndListWatches(t *testing.T) {
	db := openTestDB(t)
	srv := New(db)

	rec, body := doJSON(t, srv, "POST", "/api/watches",
		`{"name":"acme","type":"entity","query_terms":"Acme Corp","court_filter":["delhi"],"polling_interval_minutes":240}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %v", rec.Code, body)
	}
	if body["name"] != "acme" || body["is_active"] != true {
		t.Errorf("unexpected watch body: %v", body)
	}

	req := httptest.NewRequest("GET", "/api/watches", nil)
	rec2 := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec2, req)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec2.Code)
	}
	var watches []map[string]any
	json.Unmarshal(rec2.Body.Bytes(), &watches)
	if len(watches) != 1 {
		t.Fatalf("expected 1 watch, got %d", len(watches))
	}
}

func TestCreateWatchValidation(t *testing.T) {
	db := openTestDB(t)
	srv := New(db)

	rec, _ := doJSON(t, srv, "POST", "/api/watches", `{"type":"entity"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing fields, got %d", rec.Code)
	}

	rec, _ = doJSON(t, srv, "POST", "/api/watches",
		`{"name":"bad","type":"judge","query_terms":"Smith"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown type, got %d", rec.Code)
	}
}

func TestPollNowRoute(t *testing.T) {
	db := openTestDB(t)
	wid, _ := db.InsertWatch("acme", database.WatchEntity, "Acme Corp", nil, 240)
	srv := New(db)

	rec, body := doJSON(t, srv, "POST", fmt.Sprintf("/api/watches/%d/poll", wid), "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	requestID, _ := body["request_id"].(string)
	if requestID == "" {
		t.Fatal("expected request_id in response")
	}

	req, err := db.GetPollRequest(requestID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req == nil || req.Status != database.RequestPending {
		t.Error("expected pending poll request created")
	}
}

func TestPollNowUnknownWatch(t *testing.T) {
	db := openTestDB(t)
	srv := New(db)

	rec, _ := doJSON(t, srv, "POST", "/api/watches/999/poll", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestResumeRoute(t *testing.T) {
	db := openTestDB(t)
	db.PausePolling("authentication failure")
	srv := New(db)

	rec, _ := doJSON(t, srv, "POST", "/api/polling/resume", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	paused, _, _ := db.IsPollingPaused()
	if paused {
		t.Error("expected polling resumed")
	}
}

func TestRecentMatchesRoute(t *testing.T) {
	db := openTestDB(t)
	wid, _ := db.InsertWatch("acme", database.WatchEntity, "Acme Corp", nil, 240)
	doc := int64(101)
	jid, _, _ := db.InsertJudgment(&database.Judgment{DocID: &doc, Title: "Acme v State", Source: database.SourceSearch})
	db.InsertMatch(wid, jid, nil)

	srv := New(db)
	req := httptest.NewRequest("GET", "/api/matches/recent", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var matches []map[string]any
	json.Unmarshal(rec.Body.Bytes(), &matches)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0]["watch_name"] != "acme" || matches[0]["title"] != "Acme v State" {
		t.Errorf("unexpected match body: %v", matches[0])
	}
	if !strings.Contains(matches[0]["url"].(string), "/101/") {
		t.Errorf("expected document URL, got %v", matches[0]["url"])
	}
}

func TestRecentMatchesInvalidHours(t *testing.T) {
	db := openTestDB(t)
	srv := New(db)

	req := httptest.NewRequest("GET", "/api/matches/recent?hours=abc", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestDeleteWatchRoute(t *testing.T) {
	db := openTestDB(t)
	wid, _ := db.InsertWatch("acme", database.WatchEntity, "Acme Corp", nil, 240)
	srv := New(db)

	rec, _ := doJSON(t, srv, "DELETE", fmt.Sprintf("/api/watches/%d", wid), "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	w, _ := db.GetWatch(wid)
	if w != nil {
		t.Error("expected watch deleted")
	}
}
