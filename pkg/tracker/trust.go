package tracker

import (
	"github.com/rouenrt/rouenrt/pkg/config"
	"github.com/rouenrt/rouenrt/pkg/gtfsrt"
	"github.com/rouenrt/rouenrt/pkg/resources"
	"github.com/rs/zerolog/log"
)

// Suspicious decides whether a resolved trip can be trusted for a telemetry
// report, corroborating against the line control dataset and the backup
// feed's last-known trip for the same vehicle. Ordered guard clauses, first
// match wins. A suspicious verdict withholds the trip assignment for this
// cycle only; the vehicle's raw position may still be applied.
func Suspicious(vehicle MonitoredVehicle, trip resources.Trip, lineData *config.LineData, backupTrip *gtfsrt.TripDescriptor) bool {
	if lineData != nil {
		if lineData.Code != trip.RouteID || vehicle.Direction-1 != trip.DirectionID {
			log.Warn().
				Str("vehicle", vehicle.VehicleRef).
				Str("route", trip.RouteID).
				Str("expected", lineData.Code).
				Msg("Resolved trip disagrees with line dataset. Are the GTFS and HUB resources up to date?")
			return true
		}

		if backupTrip == nil && !lineData.KnownDestination(vehicle.Destination) {
			log.Warn().
				Str("vehicle", vehicle.VehicleRef).
				Str("destination", vehicle.Destination).
				Msg("Missing from backup feed and destination is unknown")
			return true
		}
	}

	if backupTrip != nil {
		if trip.RouteID != backupTrip.RouteID {
			log.Warn().
				Str("vehicle", vehicle.VehicleRef).
				Str("route", trip.RouteID).
				Str("backuproute", backupTrip.RouteID).
				Msg("Resolved trip and backup feed routes mismatch")
			return true
		}

		if lineData != nil && !lineData.KnownDestination(vehicle.Destination) {
			// Backup corroboration overrides the unknown destination
			return false
		}
	}

	if lineData != nil && backupTrip != nil {
		if !lineData.KnownDestination(vehicle.Destination) &&
			(trip.RouteID != backupTrip.RouteID || trip.DirectionID != backupTrip.DirectionID) {
			log.Warn().
				Str("vehicle", vehicle.VehicleRef).
				Msg("Resolved trip and backup feed mismatch with unknown destination")
			return true
		}
	}

	return false
}
