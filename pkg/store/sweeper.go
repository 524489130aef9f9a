package store

import (
	"time"

	"github.com/rouenrt/rouenrt/pkg/stats"
	"github.com/rs/zerolog/log"
)

// RunSweeper evicts stale entries on a fixed interval until stop is closed.
func (s *Store) RunSweeper(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(time.Now())
		case <-stop:
			return
		}
	}
}

// Sweep deletes trip updates whose last stop should long have been reached
// and vehicle positions that stopped reporting. A trip update with no stop
// list left carries no usable information and goes straight away.
func (s *Store) Sweep(now time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	epoch := now.Unix()
	staleAfter := int64(s.staleAfter.Seconds())

	swept := 0

	for tripID, tripUpdate := range s.tripUpdates {
		if len(tripUpdate.StopTimeUpdate) == 0 {
			delete(s.tripUpdates, tripID)
			swept++
			continue
		}

		lastStopTime := tripUpdate.StopTimeUpdate[len(tripUpdate.StopTimeUpdate)-1]
		if lastStopTime.Arrival != nil {
			aimedArrival := lastStopTime.Arrival.Time - int64(lastStopTime.Arrival.Delay)
			if epoch-aimedArrival > staleAfter {
				delete(s.tripUpdates, tripID)
				swept++
			}
		} else if epoch-tripUpdate.Timestamp > staleAfter {
			delete(s.tripUpdates, tripID)
			swept++
		}
	}

	for vehicleID, vehiclePosition := range s.vehiclePositions {
		if vehiclePosition.Trip != nil {
			if _, liveTripUpdate := s.tripUpdates[vehiclePosition.Trip.TripID]; liveTripUpdate {
				continue
			}
		}

		if epoch-vehiclePosition.Timestamp > staleAfter {
			delete(s.vehiclePositions, vehicleID)
			swept++
		}
	}

	stats.StoreEntries.WithLabelValues("trip_updates").Set(float64(len(s.tripUpdates)))
	stats.StoreEntries.WithLabelValues("vehicle_positions").Set(float64(len(s.vehiclePositions)))

	if swept > 0 {
		log.Info().Int("count", swept).Msg("Swept outdated realtime entries")
	}
}
