package web

import (
	"encoding/json"
	"net/http"
	"time"

	"eventtz/internal/errdef"
	"eventtz/internal/event"
	"eventtz/internal/tz"
)

type timezonesResponse struct {
	Timezones []string `json:"timezones"`
}

func (s *Server) handleTimezones(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, timezonesResponse{Timezones: tz.ListTimezones()})
}

type convertResponse struct {
	Instant   string `json:"instant"`
	Timezone  string `json:"timezone"`
	Formatted string `json:"formatted"`
}

// handleConvert reads a wall clock in one zone and shows the same instant in
// another.
//
// GET /api/convert?date=2025-03-10&time=09:00&from=America/New_York&to=Asia/Tokyo
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	to := q.Get("to")
	if to == "" {
		to = "UTC"
	}

	instant, err := tz.ParseWallClockInTimezone(q.Get("date"), q.Get("time"), q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	formatted, err := tz.FormatInstant(&instant, to)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, convertResponse{
		Instant:   instant.Format(time.RFC3339),
		Timezone:  to,
		Formatted: formatted,
	})
}

// validateRequest mirrors the event form fields.
type validateRequest struct {
	Profiles  []string `json:"profiles"`
	Timezone  string   `json:"timezone"`
	StartDate string   `json:"startDate"`
	StartTime string   `json:"startTime"`
	EndDate   string   `json:"endDate"`
	EndTime   string   `json:"endTime"`
	Mode      string   `json:"mode"`
}

// handleValidate runs the event validator without creating anything. A valid
// request returns the payload that would be sent to the backend.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	if err := dec.Decode(&req); err != nil {
		writeErr(w, errdef.NewBadRequest("invalid JSON body: %w", err))
		return
	}

	payload, err := validate(event.Input{
		ProfileIDs: req.Profiles,
		Timezone:   req.Timezone,
		StartDate:  req.StartDate,
		StartTime:  req.StartTime,
		EndDate:    req.EndDate,
		EndTime:    req.EndTime,
		Now:        s.now(),
		Mode:       event.ParseMode(req.Mode),
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}
