package store

import (
	"sync"
	"time"

	"github.com/jinzhu/copier"
	"github.com/rouenrt/rouenrt/pkg/gtfsrt"
	"golang.org/x/exp/maps"
)

// Store is the canonical in-memory view of active trips and vehicle
// positions. All mutation paths (telemetry handler, reconciliation loop,
// sweep loop) go through the one mutex so single-key updates stay atomic.
type Store struct {
	mutex sync.Mutex

	tripUpdates      map[string]*gtfsrt.TripUpdate
	vehiclePositions map[string]*gtfsrt.VehiclePosition

	lastPositions map[string]LastPosition
	fingerprints  map[string]string

	staleAfter time.Duration
}

// LastPosition remembers where a vehicle was last seen moving, independent
// of any trip assignment. It survives trip reassignment.
type LastPosition struct {
	Position   gtfsrt.Position
	RecordedAt int64
}

func NewStore(staleAfter time.Duration) *Store {
	return &Store{
		tripUpdates:      map[string]*gtfsrt.TripUpdate{},
		vehiclePositions: map[string]*gtfsrt.VehiclePosition{},
		lastPositions:    map[string]LastPosition{},
		fingerprints:     map[string]string{},
		staleAfter:       staleAfter,
	}
}

func (s *Store) LastPosition(vehicleID string) (LastPosition, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	lastPosition, exists := s.lastPositions[vehicleID]
	return lastPosition, exists
}

// SeedLastPosition registers a first sighting of a vehicle. The zero
// RecordedAt lets the next report through the identical-position check.
func (s *Store) SeedLastPosition(vehicleID string, position gtfsrt.Position) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.lastPositions[vehicleID] = LastPosition{Position: position, RecordedAt: 0}
}

func (s *Store) SetLastPosition(vehicleID string, position gtfsrt.Position, recordedAt int64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.lastPositions[vehicleID] = LastPosition{Position: position, RecordedAt: recordedAt}
}

// CheckFingerprint records the duplicate-suppression fingerprint for a
// vehicle and reports whether the previous one was identical, in which case
// the push carries an already-applied state and can be skipped.
func (s *Store) CheckFingerprint(vehicleID string, fingerprint string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.fingerprints[vehicleID] == fingerprint {
		return true
	}
	s.fingerprints[vehicleID] = fingerprint

	return false
}

// ResolveTimestamp applies the per-key ordering rules to a candidate write.
// A timestamp strictly older than either the last-position cache or the
// stored entry for the vehicle is rejected. When the reported position has
// not moved, the effective timestamp is frozen to the cached one so that
// staleness is measured from last movement, not last message.
func (s *Store) ResolveTimestamp(vehicleID string, position gtfsrt.Position, recordedAt int64) (int64, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	lastPosition := s.lastPositions[vehicleID]
	if recordedAt < lastPosition.RecordedAt {
		return 0, false
	}
	if existing, exists := s.vehiclePositions[vehicleID]; exists && recordedAt < existing.Timestamp {
		return 0, false
	}

	if position.Latitude == lastPosition.Position.Latitude && position.Longitude == lastPosition.Position.Longitude {
		return lastPosition.RecordedAt, true
	}

	return recordedAt, true
}

func (s *Store) TripUpdate(tripID string) (gtfsrt.TripUpdate, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	tripUpdate, exists := s.tripUpdates[tripID]
	if !exists {
		return gtfsrt.TripUpdate{}, false
	}

	return cloneTripUpdate(tripUpdate), true
}

func (s *Store) VehiclePosition(vehicleID string) (gtfsrt.VehiclePosition, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	vehiclePosition, exists := s.vehiclePositions[vehicleID]
	if !exists {
		return gtfsrt.VehiclePosition{}, false
	}

	return cloneVehiclePosition(vehiclePosition), true
}

func (s *Store) SetTripUpdate(tripUpdate gtfsrt.TripUpdate) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.tripUpdates[tripUpdate.Trip.TripID] = &tripUpdate
}

func (s *Store) SetVehiclePosition(vehiclePosition gtfsrt.VehiclePosition) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.vehiclePositions[vehiclePosition.Vehicle.ID] = &vehiclePosition
}

// UpdateVehiclePosition runs an in-place field update against an existing
// entry under the store lock. Returns false when the vehicle is unknown.
func (s *Store) UpdateVehiclePosition(vehicleID string, update func(*gtfsrt.VehiclePosition)) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	vehiclePosition, exists := s.vehiclePositions[vehicleID]
	if !exists {
		return false
	}
	update(vehiclePosition)

	return true
}

func (s *Store) TripUpdates() []gtfsrt.TripUpdate {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	tripUpdates := make([]gtfsrt.TripUpdate, 0, len(s.tripUpdates))
	for _, tripUpdate := range s.tripUpdates {
		tripUpdates = append(tripUpdates, cloneTripUpdate(tripUpdate))
	}

	return tripUpdates
}

func (s *Store) VehiclePositions() []gtfsrt.VehiclePosition {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	vehiclePositions := make([]gtfsrt.VehiclePosition, 0, len(s.vehiclePositions))
	for _, vehiclePosition := range s.vehiclePositions {
		vehiclePositions = append(vehiclePositions, cloneVehiclePosition(vehiclePosition))
	}

	return vehiclePositions
}

func (s *Store) TripIDs() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return maps.Keys(s.tripUpdates)
}

func (s *Store) VehicleIDs() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return maps.Keys(s.vehiclePositions)
}

func cloneTripUpdate(tripUpdate *gtfsrt.TripUpdate) gtfsrt.TripUpdate {
	var cloned gtfsrt.TripUpdate
	copier.CopyWithOption(&cloned, tripUpdate, copier.Option{DeepCopy: true})

	return cloned
}

func cloneVehiclePosition(vehiclePosition *gtfsrt.VehiclePosition) gtfsrt.VehiclePosition {
	var cloned gtfsrt.VehiclePosition
	copier.CopyWithOption(&cloned, vehiclePosition, copier.Option{DeepCopy: true})

	return cloned
}
