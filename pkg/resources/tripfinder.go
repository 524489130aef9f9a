package resources

import (
	"sync"
	"time"

	"github.com/rouenrt/rouenrt/pkg/stats"
	"github.com/rs/zerolog/log"
)

// TripFinder records which trip each vehicle was last observed serving in
// the operator's own GTFS-RT vehicle feed. Used as a fallback when the
// crosswalk cannot resolve a journey identifier.
type TripFinder struct {
	URL string

	// Observations older than this are no longer trusted
	MaxObservationAge time.Duration

	mutex        sync.RWMutex
	observations map[string]tripObservation
}

type tripObservation struct {
	tripID     string
	observedAt time.Time
}

func NewTripFinder(url string, maxObservationAge time.Duration) *TripFinder {
	return &TripFinder{
		URL:               url,
		MaxObservationAge: maxObservationAge,
		observations:      map[string]tripObservation{},
	}
}

// TripID returns the trip a vehicle was last seen on, if observed recently
// enough.
func (t *TripFinder) TripID(vehicleID string) (string, bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	observation, exists := t.observations[vehicleID]
	if !exists || time.Since(observation.observedAt) > t.MaxObservationAge {
		return "", false
	}

	return observation.tripID, true
}

func (t *TripFinder) Refresh() error {
	feed, err := FetchFeed(t.URL)
	if err != nil {
		return err
	}

	now := time.Now()

	t.mutex.Lock()
	defer t.mutex.Unlock()

	for _, entity := range feed.GetEntity() {
		vehiclePosition := entity.GetVehicle()
		if vehiclePosition == nil || vehiclePosition.GetTrip() == nil {
			continue
		}

		t.observations[vehiclePosition.GetVehicle().GetId()] = tripObservation{
			tripID:     vehiclePosition.GetTrip().GetTripId(),
			observedAt: now,
		}
	}

	return nil
}

func (t *TripFinder) RunRefresher(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := t.Refresh(); err != nil {
				log.Error().Err(err).Msg("Failed to refresh trip observations")
				stats.ResourceRefreshes.WithLabelValues("tripfinder", "error").Inc()
				continue
			}
			stats.ResourceRefreshes.WithLabelValues("tripfinder", "success").Inc()
		case <-stop:
			return
		}
	}
}
