package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/olofsundelin/familywall/internal/model"
)

const haResponse = `[
  {
    "summary": "Tandläkare Maja",
    "start": {"dateTime": "2025-08-12T09:00:00Z"},
    "end": {"dateTime": "2025-08-12T10:00:00Z"},
    "location": "Folktandvården",
    "uid": "ha-1"
  },
  {
    "summary": "Semester",
    "start": {"date": "2025-08-13"},
    "end": {"date": "2025-08-16"}
  },
  {
    "summary": "utan start",
    "end": {"dateTime": "2025-08-12T10:00:00Z"}
  }
]`

func TestHomeAssistantFetch(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Query().Get("start") == "" || r.URL.Query().Get("end") == "" {
			t.Errorf("start/end query params missing: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(haResponse))
	}))
	defer srv.Close()

	h := NewHomeAssistant(srv.URL, "ha-token", "calendar.familjekalender", "Google via HA", "Familjekalendern", time.UTC)

	events, err := h.Fetch(context.Background(), augustWindow)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if gotPath != "/api/calendars/calendar.familjekalender" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer ha-token" {
		t.Fatalf("auth = %q", gotAuth)
	}

	// The record without a start is dropped.
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	timed := events[0]
	if timed.Summary != "Tandläkare Maja" || timed.UID != "ha-1" || timed.Location != "Folktandvården" {
		t.Fatalf("timed event: %+v", timed)
	}
	if timed.Source != "Google via HA" || timed.Calendar != "Familjekalendern" {
		t.Fatalf("source tags: %+v", timed)
	}
	if timed.Start.AllDay {
		t.Fatalf("dateTime boundary marked all-day")
	}

	allDay := events[1]
	if !allDay.Start.AllDay || !allDay.End.AllDay {
		t.Fatalf("date boundary not all-day: %+v", allDay)
	}
	if allDay.Start.Date != (model.Date{Year: 2025, Month: time.August, Day: 13}) {
		t.Fatalf("all-day start = %v", allDay.Start.Date)
	}
}

func TestHomeAssistantUnconfigured(t *testing.T) {
	h := NewHomeAssistant("", "", "", "ha", "cal", time.UTC)
	if _, err := h.Fetch(context.Background(), augustWindow); err == nil {
		t.Fatalf("unconfigured adapter should error")
	}
}

func TestHomeAssistantUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	h := NewHomeAssistant(srv.URL, "bad", "calendar.x", "ha", "cal", time.UTC)
	if _, err := h.Fetch(context.Background(), augustWindow); err == nil {
		t.Fatalf("non-200 should error")
	}
}
