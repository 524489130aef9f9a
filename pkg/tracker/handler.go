package tracker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rouenrt/rouenrt/pkg/config"
	"github.com/rouenrt/rouenrt/pkg/gtfsrt"
	"github.com/rouenrt/rouenrt/pkg/resources"
	"github.com/rouenrt/rouenrt/pkg/stats"
	"github.com/rouenrt/rouenrt/pkg/store"
	"github.com/rs/zerolog/log"
)

// BackupSource exposes the backup feed's last-known record for a vehicle,
// used to corroborate dubious trip resolutions.
type BackupSource interface {
	LastKnown(vehicleID string) (gtfsrt.VehiclePosition, bool)
}

type OccupancySource interface {
	VehicleOccupancy(ctx context.Context, parcNumber string) (gtfsrt.OccupancyStatus, bool)
}

// Tracker resolves raw telemetry reports to scheduled trips and maintains
// the canonical realtime store.
type Tracker struct {
	Config    *config.Config
	Store     *store.Store
	Resources *resources.Manager
	Stops     *resources.StopList
	Finder    *resources.TripFinder
	Backup    BackupSource
	Occupancy OccupancySource

	// Reports older than this are not applied
	MaxEventAge time.Duration

	Timezone *time.Location
}

func (t *Tracker) HandleVehicle(line string, vehicle MonitoredVehicle) {
	vehicleID := ParcNumber(vehicle.VehicleRef)
	if vehicleID == "" {
		log.Warn().Str("vehicleref", vehicle.VehicleRef).Msg("Cannot extract parc number from vehicle reference")
		stats.TelemetryEvents.WithLabelValues("dropped").Inc()
		return
	}

	position := gtfsrt.Position{
		Latitude:  vehicle.Latitude,
		Longitude: vehicle.Longitude,
		Bearing:   vehicle.Bearing,
	}

	lastPosition, seen := t.Store.LastPosition(vehicleID)
	if !seen {
		t.Store.SeedLastPosition(vehicleID, position)
		return
	}

	// The bus replays the current state of every vehicle on subscription
	if lastPosition.RecordedAt == 0 &&
		lastPosition.Position.Latitude == vehicle.Latitude &&
		lastPosition.Position.Longitude == vehicle.Longitude &&
		lastPosition.Position.Bearing == vehicle.Bearing {
		return
	}

	fingerprint := fmt.Sprintf("%s:%v:%v:%v", truncateToMinute(vehicle.RecordedAtTime), vehicle.Latitude, vehicle.Longitude, vehicle.Bearing)
	if t.Store.CheckFingerprint(vehicleID, fingerprint) {
		stats.TelemetryEvents.WithLabelValues("duplicate").Inc()
		return
	}

	log.Debug().
		Str("line", line).
		Str("vehicle", vehicleID).
		Int("journey", vehicle.VJourneyId).
		Str("linenumber", vehicle.LineNumber).
		Str("destination", vehicle.Destination).
		Msg("Vehicle report")

	commercial := t.commercialDestination(vehicle.Destination)

	var trip resources.Trip
	if commercial {
		resolved, resolvedOK := t.resolveTrip(vehicle)
		if !resolvedOK {
			stats.TelemetryEvents.WithLabelValues("unresolved").Inc()
			return
		}
		trip = resolved
	}

	recordedAt, err := ParseRecordedAt(vehicle.RecordedAtTime, t.Timezone)
	if err != nil {
		log.Warn().Err(err).Str("vehicle", vehicleID).Str("recordedat", vehicle.RecordedAtTime).Msg("Cannot parse recorded time")
		stats.TelemetryEvents.WithLabelValues("dropped").Inc()
		return
	}

	timestamp, accepted := t.Store.ResolveTimestamp(vehicleID, position, recordedAt.Unix())
	if !accepted {
		log.Warn().Str("vehicle", vehicleID).Msg("Position older than the cached position, ignoring")
		stats.TelemetryEvents.WithLabelValues("out_of_order").Inc()
		return
	}
	if time.Since(time.Unix(timestamp, 0)) > t.MaxEventAge {
		return
	}

	t.Store.SetLastPosition(vehicleID, position, timestamp)

	var backupTrip *gtfsrt.TripDescriptor
	if backupPosition, exists := t.Backup.LastKnown(vehicleID); exists {
		backupTrip = backupPosition.Trip
	}

	var lineData *config.LineData
	if data, exists := t.Config.Lines[vehicle.LineNumber]; exists {
		lineData = &data
	}

	if commercial && Suspicious(vehicle, trip, lineData, backupTrip) {
		// Withhold the trip assignment but keep a known vehicle moving
		t.Store.UpdateVehiclePosition(vehicleID, func(vehiclePosition *gtfsrt.VehiclePosition) {
			vehiclePosition.Position = position
			vehiclePosition.Timestamp = timestamp
		})
		stats.TelemetryEvents.WithLabelValues("untrusted").Inc()
		return
	}

	if len(vehicle.StopTimeList) == 0 {
		log.Warn().Str("vehicle", vehicleID).Msg("No monitored stop for this vehicle, ignoring")
		stats.TelemetryEvents.WithLabelValues("dropped").Inc()
		return
	}

	vehicleDescriptor := gtfsrt.VehicleDescriptor{
		ID:    vehicleID,
		Label: vehicle.Destination,
	}

	var tripDescriptor *gtfsrt.TripDescriptor
	if commercial {
		tripDescriptor = &gtfsrt.TripDescriptor{
			TripID:               trip.TripID,
			RouteID:              trip.RouteID,
			DirectionID:          trip.DirectionID,
			ScheduleRelationship: gtfsrt.TripScheduled,
		}

		t.Store.SetTripUpdate(gtfsrt.TripUpdate{
			Trip:           *tripDescriptor,
			Vehicle:        vehicleDescriptor,
			StopTimeUpdate: t.buildStopTimeUpdates(vehicle),
			Timestamp:      timestamp,
		})
	}

	vehiclePosition := gtfsrt.VehiclePosition{
		Trip:      tripDescriptor,
		Vehicle:   vehicleDescriptor,
		Position:  position,
		Timestamp: timestamp,
	}

	if tripDescriptor != nil {
		currentStop := currentStop(vehicle)
		if stopCode, exists := t.Stops.StopCode(currentStop.StopPointId); exists {
			vehiclePosition.StopID = stopCode
		}

		if vehicle.VehicleAtStop {
			vehiclePosition.CurrentStatus = gtfsrt.VehicleStoppedAt
		} else {
			vehiclePosition.CurrentStatus = gtfsrt.VehicleInTransitTo
		}
	}

	if commercial {
		if status, exists := t.Occupancy.VehicleOccupancy(context.Background(), vehicleID); exists {
			vehiclePosition.OccupancyStatus = status
		}
	} else {
		vehiclePosition.OccupancyStatus = gtfsrt.OccupancyNotBoardable
	}

	t.Store.SetVehiclePosition(vehiclePosition)
	stats.TelemetryEvents.WithLabelValues("accepted").Inc()
}

// resolveTrip maps the report's journey identifier through the crosswalk to
// an operation code and looks that up in the schedule snapshot. When the
// crosswalk has no entry for the journey, the vehicle's last observed trip
// in the operator's own feed serves as a fallback.
func (t *Tracker) resolveTrip(vehicle MonitoredVehicle) (resources.Trip, bool) {
	hub := t.Resources.Hub()
	schedule := t.Resources.Schedule()

	operationCode, exists := hub.OperationCode(strconv.Itoa(vehicle.VJourneyId))
	if !exists && t.Finder != nil {
		operationCode, exists = t.Finder.TripID(ParcNumber(vehicle.VehicleRef))
	}
	if !exists {
		event := log.Warn().
			Str("vehicle", vehicle.VehicleRef).
			Int("journey", vehicle.VJourneyId)
		if lineVersion, known := hub.LineVersion(strconv.Itoa(vehicle.VJourneyId)); known {
			event = event.Str("lineversion", lineVersion)
		}
		event.Msg("Unknown operation code for vehicle journey")
		return resources.Trip{}, false
	}

	trip, exists := schedule.TripByOperationCode(operationCode)
	if !exists {
		log.Warn().Str("operationcode", operationCode).Msg("Unknown trip for operation code")
		return resources.Trip{}, false
	}

	return trip, true
}

func (t *Tracker) buildStopTimeUpdates(vehicle MonitoredVehicle) []gtfsrt.StopTimeUpdate {
	var stopTimeUpdates []gtfsrt.StopTimeUpdate

	for _, stopTime := range vehicle.StopTimeList {
		stopCode, exists := t.Stops.StopCode(stopTime.StopPointId)
		if !exists {
			log.Debug().Int("stoppoint", stopTime.StopPointId).Msg("Unknown stop point, skipping stop time")
			continue
		}

		stopTimeUpdate := gtfsrt.StopTimeUpdate{StopID: stopCode}

		if stopTime.IsCancelled {
			stopTimeUpdate.ScheduleRelationship = gtfsrt.StopTimeSkipped
			stopTimeUpdates = append(stopTimeUpdates, stopTimeUpdate)
			continue
		}

		if !stopTime.IsMonitored {
			stopTimeUpdate.ScheduleRelationship = gtfsrt.StopTimeNoData
			stopTimeUpdates = append(stopTimeUpdates, stopTimeUpdate)
			continue
		}

		aimedTime, aimedErr := time.ParseInLocation(localTimeLayout, stopTime.AimedTime, t.Timezone)
		expectedTime, expectedErr := time.Parse(time.RFC3339, stopTime.ExpectedTime)
		if aimedErr != nil || expectedErr != nil {
			stopTimeUpdate.ScheduleRelationship = gtfsrt.StopTimeNoData
			stopTimeUpdates = append(stopTimeUpdates, stopTimeUpdate)
			continue
		}

		event := gtfsrt.StopTimeEvent{
			Delay: int(expectedTime.Sub(aimedTime).Seconds()),
			Time:  expectedTime.Unix(),
		}

		stopTimeUpdate.ScheduleRelationship = gtfsrt.StopTimeScheduled
		stopTimeUpdate.Arrival = &event
		departure := event
		stopTimeUpdate.Departure = &departure

		stopTimeUpdates = append(stopTimeUpdates, stopTimeUpdate)
	}

	return stopTimeUpdates
}

// currentStop picks the stop the vehicle is currently at or heading to. The
// monitored stop is only current while the vehicle is at it or has not yet
// departed the origin.
func currentStop(vehicle MonitoredVehicle) MonitoredStopTime {
	monitoredStop := vehicle.StopTimeList[0]

	if vehicle.VehicleAtStop || monitoredStop.StopPointOrder == 1 {
		return monitoredStop
	}
	if len(vehicle.StopTimeList) > 1 {
		return vehicle.StopTimeList[1]
	}

	return monitoredStop
}

func (t *Tracker) commercialDestination(destination string) bool {
	for _, depotDestination := range t.Config.DepotDestinations {
		if destination == depotDestination {
			return false
		}
	}

	return true
}

// truncateToMinute drops the seconds from a local wall-clock time string
// for the duplicate-suppression fingerprint.
func truncateToMinute(recordedAtTime string) string {
	if len(recordedAtTime) < 3 {
		return recordedAtTime
	}

	return recordedAtTime[:len(recordedAtTime)-3]
}
