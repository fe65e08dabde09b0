// Package backend talks to the REST service that stores profiles and events.
package backend

import (
	"context"
	"net/url"

	"eventtz/internal/event"
	"eventtz/internal/model"
)

// defaultProfileTimezone is used when a profile is created without one.
const defaultProfileTimezone = "UTC"

// Client exposes the backend operations the UI needs.
type Client struct {
	t Transport
}

func New(t Transport) *Client {
	return &Client{t: t}
}

type createProfileRequest struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

type updateProfileRequest struct {
	Timezone string `json:"timezone"`
}

func (c *Client) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	profiles := make([]model.Profile, 0)
	if err := c.t.Get(ctx, "/profiles", &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (c *Client) CreateProfile(ctx context.Context, name, timezone string) (model.Profile, error) {
	if timezone == "" {
		timezone = defaultProfileTimezone
	}
	var p model.Profile
	err := c.t.Post(ctx, "/profiles", createProfileRequest{Name: name, Timezone: timezone}, &p)
	return p, err
}

func (c *Client) UpdateProfile(ctx context.Context, id, timezone string) (model.Profile, error) {
	var p model.Profile
	err := c.t.Put(ctx, "/profiles/"+url.PathEscape(id), updateProfileRequest{Timezone: timezone}, &p)
	return p, err
}

// ListEvents returns the events of a profile, or every event when profileID is empty.
func (c *Client) ListEvents(ctx context.Context, profileID string) ([]model.Event, error) {
	path := "/events"
	if profileID != "" {
		path += "?" + url.Values{"profile": {profileID}}.Encode()
	}
	events := make([]model.Event, 0)
	if err := c.t.Get(ctx, path, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *Client) GetEvent(ctx context.Context, id string) (model.Event, error) {
	var e model.Event
	err := c.t.Get(ctx, "/events/"+url.PathEscape(id), &e)
	return e, err
}

func (c *Client) CreateEvent(ctx context.Context, p event.Payload) (model.Event, error) {
	var e model.Event
	err := c.t.Post(ctx, "/events", p, &e)
	return e, err
}

func (c *Client) UpdateEvent(ctx context.Context, id string, p event.Payload) (model.Event, error) {
	var e model.Event
	err := c.t.Put(ctx, "/events/"+url.PathEscape(id), p, &e)
	return e, err
}
