package resources

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rouenrt/rouenrt/pkg/stats"
	"github.com/rs/zerolog/log"
)

// Manager owns the periodically refreshed schedule and crosswalk snapshots.
// Readers always get the latest successfully loaded snapshot; a failed
// refresh keeps the previous one.
type Manager struct {
	GTFSFeedURL string
	HubFeedURL  string

	// Reload even without a header change once a snapshot is this old
	MaxSnapshotAge time.Duration

	mutex    sync.RWMutex
	schedule *Schedule
	hub      *Hub
}

func (m *Manager) Schedule() *Schedule {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.schedule
}

func (m *Manager) Hub() *Hub {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.hub
}

// LoadInitial blocks until both resources have loaded once, retrying with
// exponential backoff. The producer cannot start without them.
func (m *Manager) LoadInitial() error {
	return backoff.Retry(func() error {
		schedule, err := LoadSchedule(m.GTFSFeedURL)
		if err != nil {
			log.Error().Err(err).Msg("Failed to load GTFS resource, retrying")
			return err
		}

		hub, err := LoadHub(m.HubFeedURL)
		if err != nil {
			log.Error().Err(err).Msg("Failed to load HUB resource, retrying")
			return err
		}

		m.mutex.Lock()
		m.schedule = schedule
		m.hub = hub
		m.mutex.Unlock()

		return nil
	}, backoff.NewExponentialBackOff())
}

func (m *Manager) RunRefresher(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.refreshSchedule()
			m.refreshHub()
		case <-stop:
			return
		}
	}
}

func (m *Manager) refreshSchedule() {
	schedule := m.Schedule()

	mustUpdate, err := m.snapshotOutdated(m.GTFSFeedURL, schedule.Version, schedule.LoadedAt)
	if err != nil {
		log.Error().Err(err).Msg("Failed to probe GTFS resource freshness")
		return
	}
	if !mustUpdate {
		return
	}

	log.Info().Msg("Updating GTFS resource")
	updated, err := LoadSchedule(m.GTFSFeedURL)
	if err != nil {
		log.Error().Err(err).Msg("Failed to update GTFS resource, keeping previous snapshot")
		stats.ResourceRefreshes.WithLabelValues("gtfs", "error").Inc()
		return
	}

	m.mutex.Lock()
	m.schedule = updated
	m.mutex.Unlock()
	stats.ResourceRefreshes.WithLabelValues("gtfs", "success").Inc()
}

func (m *Manager) refreshHub() {
	hub := m.Hub()

	mustUpdate, err := m.snapshotOutdated(m.HubFeedURL, hub.Version, hub.LoadedAt)
	if err != nil {
		log.Error().Err(err).Msg("Failed to probe HUB resource freshness")
		return
	}
	if !mustUpdate {
		return
	}

	log.Info().Msg("Updating HUB resource")
	updated, err := LoadHub(m.HubFeedURL)
	if err != nil {
		log.Error().Err(err).Msg("Failed to update HUB resource, keeping previous snapshot")
		stats.ResourceRefreshes.WithLabelValues("hub", "error").Inc()
		return
	}

	m.mutex.Lock()
	m.hub = updated
	m.mutex.Unlock()
	stats.ResourceRefreshes.WithLabelValues("hub", "success").Inc()
}

func (m *Manager) snapshotOutdated(url string, version ArchiveVersion, loadedAt time.Time) (bool, error) {
	if m.MaxSnapshotAge != 0 && time.Since(loadedAt) > m.MaxSnapshotAge {
		return true, nil
	}

	return IsArchiveStale(url, version)
}
