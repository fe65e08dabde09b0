package web

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "eventtz/internal/log"
	"eventtz/internal/model"
)

type profileCache struct {
	profiles  []model.Profile
	updatedAt time.Time
}

// listProfiles serves the cached list while it is younger than
// ProfileCacheTTL and refetches otherwise.
func (s *Server) listProfiles(ctx context.Context) ([]model.Profile, error) {
	s.profilesMu.RLock()
	pc := s.profiles
	s.profilesMu.RUnlock()
	if pc != nil && s.now().Sub(pc.updatedAt) < s.cfg.ProfileCacheTTL {
		return pc.profiles, nil
	}
	return s.RefreshProfiles(ctx)
}

// RefreshProfiles fetches the profile list and replaces the cached copy.
func (s *Server) RefreshProfiles(ctx context.Context) ([]model.Profile, error) {
	profiles, err := s.backend.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}

	s.profilesMu.Lock()
	s.profiles = &profileCache{profiles: profiles, updatedAt: s.now()}
	s.profilesMu.Unlock()

	appLog.Debug("profile cache refreshed", "count", len(profiles))
	return profiles, nil
}

func (s *Server) invalidateProfiles() {
	s.profilesMu.Lock()
	s.profiles = nil
	s.profilesMu.Unlock()
}

// StartRefresh schedules RefreshProfiles on cfg.RefreshCron. The returned cron
// is already running; stop it with Stop.
func (s *Server) StartRefresh(ctx context.Context) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(s.cfg.RefreshCron, func() {
		reqCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
		if _, err := s.RefreshProfiles(reqCtx); err != nil {
			appLog.Error("scheduled profile refresh failed", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", s.cfg.RefreshCron, err)
	}
	c.Start()
	appLog.Info("profile refresh scheduled", "cron", s.cfg.RefreshCron)
	return c, nil
}
