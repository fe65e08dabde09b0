package model

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// Profile is a named user owning a timezone preference. Profiles are owned by
// the backend; events only reference them.
type Profile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

// Event is a scheduled interval shared by one or more profiles.
//
// Start/End are absolute instants in UTC. Timezone is a display attribute and
// never changes the instants themselves.
type Event struct {
	ID       string    `json:"id"`
	Profiles []Profile `json:"profiles"`
	Timezone string    `json:"timezone"`

	Start time.Time `json:"startDateTime"`
	End   time.Time `json:"endDateTime"`

	// CreatedAt / UpdatedAt are nil when the backend did not send them.
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// ProfileIDs returns the ids of the participating profiles in order.
func (e Event) ProfileIDs() []string {
	ids := make([]string, 0, len(e.Profiles))
	for _, p := range e.Profiles {
		ids = append(ids, p.ID)
	}
	return ids
}

// ProfileNames returns display names, "Unknown" for profiles the backend did
// not populate.
func (e Event) ProfileNames() []string {
	names := make([]string, 0, len(e.Profiles))
	for _, p := range e.Profiles {
		if p.Name == "" {
			names = append(names, "Unknown")
			continue
		}
		names = append(names, p.Name)
	}
	return names
}

// UnmarshalJSON accepts both "id" and the document store's "_id".
func (p *Profile) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("profile: invalid JSON")
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return fmt.Errorf("profile: expected object, got %s", doc.Type)
	}
	*p = profileFromResult(doc)
	return nil
}

func profileFromResult(r gjson.Result) Profile {
	return Profile{
		ID:       documentID(r),
		Name:     r.Get("name").String(),
		Timezone: r.Get("timezone").String(),
	}
}

// UnmarshalJSON decodes an event document. Profiles may be populated objects
// or bare id strings, and timestamps may be missing.
func (e *Event) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("event: invalid JSON")
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return fmt.Errorf("event: expected object, got %s", doc.Type)
	}

	out := Event{
		ID:       documentID(doc),
		Timezone: doc.Get("timezone").String(),
		Profiles: make([]Profile, 0),
	}

	for _, p := range doc.Get("profiles").Array() {
		switch {
		case p.IsObject():
			out.Profiles = append(out.Profiles, profileFromResult(p))
		case p.Type == gjson.String:
			out.Profiles = append(out.Profiles, Profile{ID: p.String()})
		}
	}

	var err error
	if out.Start, err = requiredTime(doc, "startDateTime"); err != nil {
		return err
	}
	if out.End, err = requiredTime(doc, "endDateTime"); err != nil {
		return err
	}
	if out.CreatedAt, err = optionalTime(doc, "createdAt"); err != nil {
		return err
	}
	if out.UpdatedAt, err = optionalTime(doc, "updatedAt"); err != nil {
		return err
	}

	*e = out
	return nil
}

func documentID(r gjson.Result) string {
	if id := r.Get("id"); id.Exists() {
		return id.String()
	}
	return r.Get("_id").String()
}

func requiredTime(doc gjson.Result, key string) (time.Time, error) {
	t, err := optionalTime(doc, key)
	if err != nil {
		return time.Time{}, err
	}
	if t == nil {
		return time.Time{}, fmt.Errorf("event: missing %s", key)
	}
	return *t, nil
}

func optionalTime(doc gjson.Result, key string) (*time.Time, error) {
	v := doc.Get(key)
	if !v.Exists() || v.Type == gjson.Null || v.String() == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String())
	if err != nil {
		return nil, fmt.Errorf("event: %s: %w", key, err)
	}
	t = t.UTC()
	return &t, nil
}
