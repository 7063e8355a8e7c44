package database

import "testing"

func TestCreatePollRequest(t *testing.T) {
	db := openTestDB(t)
	wid, _ := db.InsertWatch("a", WatchEntity, "A", nil, 240)

	id, err := db.CreatePollRequest(wid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty request ID")
	}

	req, err := db.GetPollRequest(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req == nil {
		t.Fatal("expected request to exist")
	}
	if req.Status != RequestPending {
		t.Errorf("expected pending status, got %q", req.Status)
	}
}

func TestCreatePollRequestUnknownWatch(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.CreatePollRequest(999); err == nil {
		t.Error("expected error for unknown watch")
	}
}

func TestPollRequestLifecycle(t *testing.T) {
	db := openTestDB(t)
	wid, _ := db.InsertWatch("a", WatchEntity, "A", nil, 240)
	id, _ := db.CreatePollRequest(wid)

	claimed, err := db.ClaimPollRequest(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !claimed {
		t.Fatal("expected to claim pending request")
	}

	// A second claim must lose.
	claimed, _ = db.ClaimPollRequest(id)
	if claimed {
		t.Error("expected second claim to fail")
	}

	if err := db.FinishPollRequest(id, RequestDone, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req, _ := db.GetPollRequest(id)
	if req.Status != RequestDone {
		t.Errorf("expected done status, got %q", req.Status)
	}

	pending, _ := db.GetPendingPollRequests()
	if len(pending) != 0 {
		t.Errorf("expected no pending requests, got %d", len(pending))
	}
}

func TestFinishPollRequestFailed(t *testing.T) {
	db := openTestDB(t)
	wid, _ := db.InsertWatch("a", WatchEntity, "A", nil, 240)
	id, _ := db.CreatePollRequest(wid)
	db.ClaimPollRequest(id)

	if err := db.FinishPollRequest(id, RequestFailed, ptr("search unavailable")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req, _ := db.GetPollRequest(id)
	if req.Status != RequestFailed {
		t.Errorf("expected failed status, got %q", req.Status)
	}
	if req.Error == nil || *req.Error != "search unavailable" {
		t.Error("expected error message recorded")
	}
}

func TestFinishPollRequestRejectsNonTerminal(t *testing.T) {
	db := openTestDB(t)
	wid, _ := db.InsertWatch("a", WatchEntity, "A", nil, 240)
	id, _ := db.CreatePollRequest(wid)
	db.ClaimPollRequest(id)

	if err := db.FinishPollRequest(id, RequestProcessing, nil); err == nil {
		t.Error("expected error for non-terminal status")
	}
}

func TestGetPollRequestNotFound(t *testing.T) {
	db := openTestDB(t)
	req, err := db.GetPollRequest("no-such-id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req != nil {
		t.Error("expected nil for unknown request")
	}
}
