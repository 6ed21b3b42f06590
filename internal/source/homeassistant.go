package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/olofsundelin/familywall/internal/model"
)

// HomeAssistant fetches events from a Home Assistant calendar entity.
// The upstream endpoint is already time-windowed, so records map directly
// with no local filtering.
type HomeAssistant struct {
	client   *http.Client
	baseURL  string
	token    string
	entityID string
	label    string
	calendar string
	loc      *time.Location
}

// NewHomeAssistant builds the adapter. label is the source tag on every
// produced event (e.g. "Google via HA"), calendar the display calendar name.
func NewHomeAssistant(baseURL, token, entityID, label, calendar string, loc *time.Location) *HomeAssistant {
	if loc == nil {
		loc = time.Local
	}
	return &HomeAssistant{
		client:   &http.Client{Timeout: 15 * time.Second},
		baseURL:  baseURL,
		token:    token,
		entityID: entityID,
		label:    label,
		calendar: calendar,
		loc:      loc,
	}
}

func (h *HomeAssistant) Label() string {
	return h.label
}

// haEvent mirrors the Home Assistant calendar API record. Start/end arrive
// as {"dateTime": ...} or {"date": ...}; model.Boundary accepts both.
type haEvent struct {
	Summary     string         `json:"summary"`
	Start       model.Boundary `json:"start"`
	End         model.Boundary `json:"end"`
	Location    string         `json:"location"`
	Description string         `json:"description"`
	UID         string         `json:"uid"`
}

func (h *HomeAssistant) Fetch(ctx context.Context, w model.Window) ([]model.CalendarEvent, error) {
	if h.baseURL == "" || h.entityID == "" {
		return nil, fmt.Errorf("home assistant adapter not configured")
	}

	start, end := w.Bounds(h.loc)
	u := fmt.Sprintf("%s/api/calendars/%s?start=%s&end=%s",
		h.baseURL,
		url.PathEscape(h.entityID),
		url.QueryEscape(start.Format(time.RFC3339)),
		url.QueryEscape(end.Format(time.RFC3339)),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+h.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("home assistant: %s", resp.Status)
	}

	var raw []haEvent
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("home assistant: decode: %w", err)
	}

	events := make([]model.CalendarEvent, 0, len(raw))
	for _, r := range raw {
		if r.Start.IsZero() {
			// Records without a start are dropped, not propagated.
			continue
		}
		ev := model.CalendarEvent{
			Summary:     r.Summary,
			Start:       r.Start,
			End:         r.End,
			Location:    r.Location,
			Description: r.Description,
			UID:         r.UID,
			Source:      h.label,
			Calendar:    h.calendar,
		}
		ev.Normalize(h.loc)
		events = append(events, ev)
	}
	return events, nil
}
