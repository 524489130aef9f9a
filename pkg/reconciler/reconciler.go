package reconciler

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rouenrt/rouenrt/pkg/gtfsrt"
	"github.com/rouenrt/rouenrt/pkg/resources"
	"github.com/rouenrt/rouenrt/pkg/stats"
	"github.com/rouenrt/rouenrt/pkg/store"
	"github.com/rs/zerolog/log"
)

type OccupancySource interface {
	VehicleOccupancy(ctx context.Context, parcNumber string) (gtfsrt.OccupancyStatus, bool)
}

// Reconciler merges the operator's legacy GTFS-RT feeds into the realtime
// store. The backup feeds cover vehicles the telemetry bus misses and
// sometimes carry fresher positions for vehicles it does track.
type Reconciler struct {
	Store     *store.Store
	Resources *resources.Manager
	Occupancy OccupancySource

	VehiclePositionsURL string
	TripUpdatesURL      string

	// Backup records older than this are not worth injecting
	FreshnessWindow time.Duration
	// Vehicles with telemetry fresher than this are left alone
	TelemetryFreshness time.Duration

	mutex           sync.RWMutex
	backupPositions map[string]gtfsrt.VehiclePosition
	backupTrips     map[string]gtfsrt.TripUpdate
}

// The backup feeds report wall-clock timestamps an hour behind the epoch.
const backupTimestampOffset = 3600

func (r *Reconciler) Run(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.Cycle(time.Now())

	for {
		select {
		case <-ticker.C:
			r.Cycle(time.Now())
		case <-stop:
			return
		}
	}
}

// Cycle refreshes the backup snapshot then runs the two reconciliation
// passes against the store.
func (r *Reconciler) Cycle(now time.Time) {
	if err := r.refreshSnapshot(); err != nil {
		log.Error().Err(err).Msg("Failed to download backup GTFS-RT feeds, reconciling with the previous snapshot")
	}

	r.refreshExisting()
	r.fillMissing(now)
}

// LastKnown returns the backup feed's latest record for a vehicle.
func (r *Reconciler) LastKnown(vehicleID string) (gtfsrt.VehiclePosition, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	vehiclePosition, exists := r.backupPositions[vehicleID]
	return vehiclePosition, exists
}

func (r *Reconciler) refreshSnapshot() error {
	vehicleFeed, err := resources.FetchFeed(r.VehiclePositionsURL)
	if err != nil {
		return err
	}
	tripFeed, err := resources.FetchFeed(r.TripUpdatesURL)
	if err != nil {
		return err
	}

	backupPositions := map[string]gtfsrt.VehiclePosition{}
	for _, entity := range vehicleFeed.GetEntity() {
		protoPosition := entity.GetVehicle()
		if protoPosition == nil {
			continue
		}

		vehiclePosition := gtfsrt.VehiclePositionFromProto(protoPosition)
		vehiclePosition.Timestamp += backupTimestampOffset
		backupPositions[vehiclePosition.Vehicle.ID] = vehiclePosition
	}

	backupTrips := map[string]gtfsrt.TripUpdate{}
	for _, entity := range tripFeed.GetEntity() {
		protoUpdate := entity.GetTripUpdate()
		if protoUpdate == nil {
			continue
		}

		tripUpdate := gtfsrt.TripUpdateFromProto(protoUpdate)
		backupTrips[tripUpdate.Trip.TripID] = tripUpdate
	}

	r.mutex.Lock()
	r.backupPositions = backupPositions
	r.backupTrips = backupTrips
	r.mutex.Unlock()

	return nil
}

// refreshExisting advances vehicles the store already tracks when the backup
// feed has observed them more recently. The stop fields only carry over when
// both sources agree on the vehicle's trip.
func (r *Reconciler) refreshExisting() {
	hub := r.Resources.Hub()

	for _, vehicleID := range r.Store.VehicleIDs() {
		backup, exists := r.LastKnown(vehicleID)
		if !exists {
			continue
		}

		var advance int64
		r.Store.UpdateVehiclePosition(vehicleID, func(vehiclePosition *gtfsrt.VehiclePosition) {
			if backup.Timestamp <= vehiclePosition.Timestamp {
				return
			}
			advance = backup.Timestamp - vehiclePosition.Timestamp

			stopID, remapped := remapStop(hub, backup.StopID)
			if remapped &&
				vehiclePosition.Trip != nil && backup.Trip != nil &&
				backup.Trip.RouteID == vehiclePosition.Trip.RouteID &&
				backup.Trip.DirectionID == vehiclePosition.Trip.DirectionID {
				vehiclePosition.StopID = stopID
				vehiclePosition.CurrentStopSequence = backup.CurrentStopSequence
				vehiclePosition.CurrentStatus = backup.CurrentStatus
			}

			vehiclePosition.Position = backup.Position
			vehiclePosition.Timestamp = backup.Timestamp
		})

		if advance > 0 {
			log.Info().
				Str("vehicle", vehicleID).
				Int64("advance", advance).
				Msg("Refreshed tracked vehicle from the backup feed")
			stats.ReconcilerVehicles.WithLabelValues("refreshed").Inc()
		}
	}
}

// fillMissing injects vehicles the telemetry bus has not reported recently.
// A backup record whose trip matches the current schedule is published as
// SCHEDULED with its trip update, anything else becomes an UNSCHEDULED
// placeholder so the vehicle still shows on a map.
func (r *Reconciler) fillMissing(now time.Time) {
	schedule := r.Resources.Schedule()
	hub := r.Resources.Hub()

	r.mutex.RLock()
	backupPositions := make([]gtfsrt.VehiclePosition, 0, len(r.backupPositions))
	for _, vehiclePosition := range r.backupPositions {
		backupPositions = append(backupPositions, vehiclePosition)
	}
	r.mutex.RUnlock()

	for _, backup := range backupPositions {
		vehicleID := backup.Vehicle.ID
		if backup.Trip == nil {
			continue
		}
		if now.Sub(time.Unix(backup.Timestamp, 0)) > r.FreshnessWindow {
			continue
		}

		if lastPosition, seen := r.Store.LastPosition(vehicleID); seen &&
			now.Sub(time.Unix(lastPosition.RecordedAt, 0)) < r.TelemetryFreshness {
			continue
		}

		trip, matched := schedule.Trip(backup.Trip.TripID)
		if matched && (trip.RouteID != backup.Trip.RouteID || trip.DirectionID != backup.Trip.DirectionID) {
			matched = false
		}
		if !matched {
			log.Warn().
				Str("vehicle", vehicleID).
				Str("trip", backup.Trip.TripID).
				Msg("Backup vehicle does not match the current schedule, it won't have trip data")
		}

		if matched {
			r.injectTripUpdate(hub, vehicleID, trip)
		}

		vehiclePosition := gtfsrt.VehiclePosition{
			Vehicle:   gtfsrt.VehicleDescriptor{ID: vehicleID},
			Position:  backup.Position,
			Timestamp: backup.Timestamp,
		}
		if occupancyStatus, exists := r.Occupancy.VehicleOccupancy(context.Background(), vehicleID); exists {
			vehiclePosition.OccupancyStatus = occupancyStatus
		}

		if matched {
			vehiclePosition.Trip = &gtfsrt.TripDescriptor{
				TripID:               trip.TripID,
				RouteID:              trip.RouteID,
				DirectionID:          trip.DirectionID,
				ScheduleRelationship: gtfsrt.TripScheduled,
			}
			if stopID, remapped := remapStop(hub, backup.StopID); remapped {
				vehiclePosition.StopID = stopID
			}
			vehiclePosition.CurrentStopSequence = backup.CurrentStopSequence
			vehiclePosition.CurrentStatus = backup.CurrentStatus
		} else {
			vehiclePosition.Trip = &gtfsrt.TripDescriptor{
				TripID:               vehicleID + "_UNKNOWN",
				RouteID:              backup.Trip.RouteID,
				DirectionID:          backup.Trip.DirectionID,
				ScheduleRelationship: gtfsrt.TripUnscheduled,
			}
		}

		r.Store.SetVehiclePosition(vehiclePosition)

		log.Info().
			Str("vehicle", vehicleID).
			Str("route", vehiclePosition.Trip.RouteID).
			Msg("Injected vehicle missing from the telemetry bus")
		stats.ReconcilerVehicles.WithLabelValues("injected").Inc()
	}
}

// injectTripUpdate republishes the backup feed's trip update for a matched
// trip, with its stop identifiers remapped to schedule stop codes. A trip
// update already in the store takes precedence, the telemetry bus knows
// better than the backup feed.
func (r *Reconciler) injectTripUpdate(hub *resources.Hub, vehicleID string, trip resources.Trip) {
	if _, live := r.Store.TripUpdate(trip.TripID); live {
		return
	}

	r.mutex.RLock()
	backupTrip, exists := r.backupTrips[trip.TripID]
	r.mutex.RUnlock()
	if !exists {
		return
	}

	tripUpdate := gtfsrt.TripUpdate{
		Trip: gtfsrt.TripDescriptor{
			TripID:               trip.TripID,
			RouteID:              trip.RouteID,
			DirectionID:          trip.DirectionID,
			ScheduleRelationship: gtfsrt.TripScheduled,
		},
		Vehicle:   gtfsrt.VehicleDescriptor{ID: vehicleID},
		Timestamp: backupTrip.Timestamp,
	}

	for _, stopTimeUpdate := range backupTrip.StopTimeUpdate {
		if stopID, remapped := remapStop(hub, stopTimeUpdate.StopID); remapped {
			stopTimeUpdate.StopID = stopID
		}
		tripUpdate.StopTimeUpdate = append(tripUpdate.StopTimeUpdate, stopTimeUpdate)
	}

	r.Store.SetTripUpdate(tripUpdate)
}

// remapStop translates a backup feed stop reference (an IDAP number) to the
// schedule's stop code.
func remapStop(hub *resources.Hub, stopID string) (string, bool) {
	if stopID == "" {
		return "", false
	}

	idap, err := strconv.Atoi(stopID)
	if err != nil {
		return "", false
	}

	return hub.StopCodeByIDAP(idap)
}
