package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"eventtz/internal/errdef"
	"eventtz/internal/event"
	"eventtz/internal/ics"
	appLog "eventtz/internal/log"
	"eventtz/internal/metric"
	"eventtz/internal/model"
	"eventtz/internal/tz"
)

const maxUploadBytes = 4 << 20

var errNoCalendar = errdef.NewBadRequest("choose an ICS file or enter a feed URL")

// page is the view model shared by every HTML template.
type page struct {
	Title     string
	Profiles  []model.Profile
	CurrentID string
	Current   *model.Profile
	Timezones []string

	Form   formState
	Events []eventRow

	EventID string
	Logs    []event.LogEntry
	Import  *ics.ImportSummary

	Error  string
	Notice string
}

// formState holds event form values so a rejected submission can be shown
// again as typed.
type formState struct {
	Selected  map[string]bool
	Timezone  string
	StartDate string
	StartTime string
	EndDate   string
	EndTime   string
}

// eventRow is an event with every instant already formatted for display.
type eventRow struct {
	ID       string
	Profiles string
	Timezone string
	Start    string
	End      string
	Created  string
	Updated  string
}

// newPage loads the header data every page needs. current selects the
// profile; empty means the first one.
func (s *Server) newPage(ctx context.Context, title, current string) (*page, error) {
	profiles, err := s.listProfiles(ctx)
	if err != nil {
		return nil, err
	}

	p := &page{
		Title:     title,
		Profiles:  profiles,
		Timezones: tz.ListTimezones(),
		Form:      formState{Timezone: s.cfg.DefaultTimezone},
	}
	for i := range profiles {
		if current == "" || profiles[i].ID == current {
			p.Current = &profiles[i]
			p.CurrentID = profiles[i].ID
			break
		}
	}
	return p, nil
}

func (s *Server) render(w http.ResponseWriter, status int, name string, p *page) {
	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, name, p); err != nil {
		appLog.Error("template render failed", err, "template", name)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderFailure shows err on a bare page when the normal view cannot be built.
func (s *Server) renderFailure(w http.ResponseWriter, err error) {
	appLog.Error("request failed", err)
	s.render(w, statusOf(err), "index", &page{Title: "Error", Error: publicMessage(err)})
}

func redirectToProfile(w http.ResponseWriter, r *http.Request, profileID string) {
	target := "/"
	if profileID != "" {
		target += "?profile=" + url.QueryEscape(profileID)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// handleIndex renders the selected profile's events, formatted in that
// profile's timezone.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderIndex(w, r, http.StatusOK, r.URL.Query().Get("profile"), nil, "")
}

func (s *Server) renderIndex(w http.ResponseWriter, r *http.Request, status int, current string, form *formState, errMsg string) {
	ctx := r.Context()

	p, err := s.newPage(ctx, "Events", current)
	if err != nil {
		s.renderFailure(w, err)
		return
	}
	p.Error = errMsg
	if form != nil {
		p.Form = *form
	}

	if p.Current != nil {
		events, err := s.backend.ListEvents(ctx, p.Current.ID)
		if err != nil {
			s.renderFailure(w, err)
			return
		}
		if p.Events, err = eventRows(events, p.Current.Timezone); err != nil {
			s.renderFailure(w, err)
			return
		}
	}

	s.render(w, status, "index", p)
}

func eventRows(events []model.Event, zone string) ([]eventRow, error) {
	if zone == "" {
		zone = "UTC"
	}
	rows := make([]eventRow, 0, len(events))
	for _, e := range events {
		start, end := e.Start, e.End
		row := eventRow{
			ID:       e.ID,
			Profiles: strings.Join(e.ProfileNames(), ", "),
			Timezone: e.Timezone,
		}
		var err error
		if row.Start, err = tz.FormatInstant(&start, zone); err != nil {
			return nil, err
		}
		if row.End, err = tz.FormatInstant(&end, zone); err != nil {
			return nil, err
		}
		if row.Created, err = tz.FormatInstant(e.CreatedAt, zone); err != nil {
			return nil, err
		}
		if row.Updated, err = tz.FormatInstant(e.UpdatedAt, zone); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		redirectToProfile(w, r, "")
		return
	}

	zone := r.FormValue("timezone")
	if _, err := tz.LoadLocation(zone); err != nil {
		zone = "UTC"
	}

	p, err := s.backend.CreateProfile(r.Context(), name, zone)
	if err != nil {
		s.renderFailure(w, err)
		return
	}
	s.invalidateProfiles()
	appLog.Info("profile created", "id", p.ID, "timezone", zone)
	redirectToProfile(w, r, p.ID)
}

func (s *Server) handleProfileTimezone(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	zone := r.FormValue("timezone")
	if _, err := tz.LoadLocation(zone); err != nil {
		appLog.Warn("profile timezone rejected", "id", id, "err", err.Error())
		s.renderIndex(w, r, http.StatusBadRequest, id, nil, genericFailure)
		return
	}

	if _, err := s.backend.UpdateProfile(r.Context(), id, zone); err != nil {
		s.renderFailure(w, err)
		return
	}
	s.invalidateProfiles()
	redirectToProfile(w, r, id)
}

func formFromRequest(r *http.Request) formState {
	f := formState{
		Selected:  make(map[string]bool),
		Timezone:  r.FormValue("timezone"),
		StartDate: r.FormValue("startDate"),
		StartTime: r.FormValue("startTime"),
		EndDate:   r.FormValue("endDate"),
		EndTime:   r.FormValue("endTime"),
	}
	for _, id := range r.Form["profiles"] {
		if id != "" {
			f.Selected[id] = true
		}
	}
	return f
}

// inputFrom builds validator input. Profile order follows the request.
func (s *Server) inputFrom(r *http.Request, f formState, mode event.Mode) event.Input {
	ids := make([]string, 0, len(f.Selected))
	for _, id := range r.Form["profiles"] {
		if f.Selected[id] {
			ids = append(ids, id)
		}
	}
	return event.Input{
		ProfileIDs: ids,
		Timezone:   f.Timezone,
		StartDate:  f.StartDate,
		StartTime:  f.StartTime,
		EndDate:    f.EndDate,
		EndTime:    f.EndTime,
		Now:        s.now(),
		Mode:       mode,
	}
}

// validate runs the validator and records the outcome.
func validate(in event.Input) (event.Payload, error) {
	payload, err := event.ValidateAndBuild(in)
	if err != nil {
		if kind, ok := event.KindOf(err); ok {
			metric.ValidationFailed(string(kind), in.Mode.String())
		}
		return event.Payload{}, err
	}
	return payload, nil
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderFailure(w, errdef.NewBadRequest("parse form: %w", err))
		return
	}
	current := r.FormValue("profile")
	form := formFromRequest(r)

	payload, err := validate(s.inputFrom(r, form, event.ModeCreate))
	if err != nil {
		s.renderIndex(w, r, statusOf(err), current, &form, publicMessage(err))
		return
	}

	created, err := s.backend.CreateEvent(r.Context(), payload)
	if err != nil {
		appLog.Error("create event failed", err)
		s.renderIndex(w, r, statusOf(err), current, &form, publicMessage(err))
		return
	}
	metric.EventSubmitted(event.ModeCreate.String())
	appLog.Info("event created", "id", created.ID, "profiles", len(payload.Profiles))
	redirectToProfile(w, r, current)
}

func (s *Server) handleEditEvent(w http.ResponseWriter, r *http.Request) {
	e, err := s.backend.GetEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		s.renderFailure(w, err)
		return
	}

	form, err := formFromEvent(e)
	if err != nil {
		s.renderFailure(w, err)
		return
	}
	s.renderEdit(w, r, http.StatusOK, e.ID, r.URL.Query().Get("profile"), form, "")
}

// formFromEvent prefills the edit form with the event's UTC wall clock, which
// is how the validator reads submitted values back.
func formFromEvent(e model.Event) (formState, error) {
	f := formState{Selected: make(map[string]bool), Timezone: e.Timezone}
	for _, id := range e.ProfileIDs() {
		f.Selected[id] = true
	}
	var err error
	if f.StartDate, f.StartTime, err = tz.SplitInstant(e.Start, "UTC"); err != nil {
		return f, err
	}
	if f.EndDate, f.EndTime, err = tz.SplitInstant(e.End, "UTC"); err != nil {
		return f, err
	}
	return f, nil
}

func (s *Server) renderEdit(w http.ResponseWriter, r *http.Request, status int, id, current string, form formState, errMsg string) {
	p, err := s.newPage(r.Context(), "Edit event", current)
	if err != nil {
		s.renderFailure(w, err)
		return
	}
	p.EventID = id
	p.Form = form
	p.Error = errMsg
	s.render(w, status, "edit", p)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderFailure(w, errdef.NewBadRequest("parse form: %w", err))
		return
	}
	id := r.PathValue("id")
	current := r.FormValue("profile")
	form := formFromRequest(r)

	payload, err := validate(s.inputFrom(r, form, event.ModeEdit))
	if err != nil {
		s.renderEdit(w, r, statusOf(err), id, current, form, publicMessage(err))
		return
	}

	if _, err := s.backend.UpdateEvent(r.Context(), id, payload); err != nil {
		appLog.Error("update event failed", err, "id", id)
		s.renderEdit(w, r, statusOf(err), id, current, form, publicMessage(err))
		return
	}
	metric.EventSubmitted(event.ModeEdit.String())
	appLog.Info("event updated", "id", id)
	redirectToProfile(w, r, current)
}

func (s *Server) handleEventLogs(w http.ResponseWriter, r *http.Request) {
	e, err := s.backend.GetEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		s.renderFailure(w, err)
		return
	}
	logs, err := event.Logs(e)
	if err != nil {
		s.renderFailure(w, err)
		return
	}

	p, err := s.newPage(r.Context(), "Event logs", r.URL.Query().Get("profile"))
	if err != nil {
		s.renderFailure(w, err)
		return
	}
	p.EventID = e.ID
	p.Logs = logs
	s.render(w, http.StatusOK, "logs", p)
}

func (s *Server) handleEventCalendar(w http.ResponseWriter, r *http.Request) {
	e, err := s.backend.GetEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeCalendar(w, "event-"+e.ID+".ics", ics.Export(ics.Summary(e), []model.Event{e}, s.now()))
}

func (s *Server) handleProfileCalendar(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	profiles, err := s.listProfiles(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	name := ""
	for _, p := range profiles {
		if p.ID == id {
			name = p.Name
		}
	}
	if name == "" {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}

	events, err := s.backend.ListEvents(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeCalendar(w, "profile-"+id+".ics", ics.Export(name, events, s.now()))
}

func writeCalendar(w http.ResponseWriter, filename, body string) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, body); err != nil {
		appLog.Warn("can't write calendar response", "err", err.Error())
	}
}

// handleImport creates events from an uploaded ICS file or a feed URL.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		s.renderIndex(w, r, http.StatusBadRequest, "", nil, "Could not read the uploaded calendar")
		return
	}
	current := r.FormValue("profile")

	body, err := s.importBody(r)
	if err != nil {
		appLog.Warn("import source rejected", "err", err.Error())
		s.renderIndex(w, r, statusOf(err), current, nil, publicMessage(err))
		return
	}

	zone := r.FormValue("timezone")
	if zone == "" {
		zone = s.cfg.DefaultTimezone
	}
	summary, err := ics.Import(r.Context(), s.backend, body, ics.ImportOptions{
		ProfileIDs:  r.Form["profiles"],
		Timezone:    zone,
		Now:         s.now(),
		HorizonDays: s.cfg.ImportHorizonDays,
	})
	if err != nil {
		appLog.Warn("import rejected", "err", err.Error())
		s.renderIndex(w, r, statusOf(err), current, nil, publicMessage(err))
		return
	}

	p, err := s.newPage(r.Context(), "Import", current)
	if err != nil {
		s.renderFailure(w, err)
		return
	}
	p.Import = &summary
	p.Notice = fmt.Sprintf("Imported %d of %d events", summary.Created, summary.Occurrences)
	s.render(w, http.StatusOK, "import", p)
}

func (s *Server) importBody(r *http.Request) ([]byte, error) {
	if file, _, err := r.FormFile("file"); err == nil {
		defer file.Close()
		return io.ReadAll(file)
	}
	if feed := strings.TrimSpace(r.FormValue("url")); feed != "" {
		return s.fetcher.Fetch(r.Context(), feed)
	}
	return nil, errNoCalendar
}
