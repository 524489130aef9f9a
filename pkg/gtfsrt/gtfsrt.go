package gtfsrt

type TripScheduleRelationship string

const (
	TripScheduled   TripScheduleRelationship = "SCHEDULED"
	TripUnscheduled TripScheduleRelationship = "UNSCHEDULED"
	TripCanceled    TripScheduleRelationship = "CANCELED"
)

type StopTimeScheduleRelationship string

const (
	StopTimeScheduled StopTimeScheduleRelationship = "SCHEDULED"
	StopTimeSkipped   StopTimeScheduleRelationship = "SKIPPED"
	StopTimeNoData    StopTimeScheduleRelationship = "NO_DATA"
)

type VehicleStopStatus string

const (
	VehicleIncomingAt  VehicleStopStatus = "INCOMING_AT"
	VehicleStoppedAt   VehicleStopStatus = "STOPPED_AT"
	VehicleInTransitTo VehicleStopStatus = "IN_TRANSIT_TO"
)

type OccupancyStatus string

const (
	OccupancyEmpty                   OccupancyStatus = "EMPTY"
	OccupancyManySeatsAvailable      OccupancyStatus = "MANY_SEATS_AVAILABLE"
	OccupancyFewSeatsAvailable       OccupancyStatus = "FEW_SEATS_AVAILABLE"
	OccupancyStandingRoomOnly        OccupancyStatus = "STANDING_ROOM_ONLY"
	OccupancyCrushedStandingRoomOnly OccupancyStatus = "CRUSHED_STANDING_ROOM_ONLY"
	OccupancyFull                    OccupancyStatus = "FULL"
	OccupancyNotAcceptingPassengers  OccupancyStatus = "NOT_ACCEPTING_PASSENGERS"
	OccupancyNoDataAvailable         OccupancyStatus = "NO_DATA_AVAILABLE"
	OccupancyNotBoardable            OccupancyStatus = "NOT_BOARDABLE"
)

// TripDescriptor identifies the scheduled trip a record refers to
type TripDescriptor struct {
	TripID               string
	RouteID              string
	DirectionID          int
	ScheduleRelationship TripScheduleRelationship
}

// VehicleDescriptor carries the fleet ("parc") number of a vehicle
type VehicleDescriptor struct {
	ID    string
	Label string
}

type Position struct {
	Latitude  float64
	Longitude float64
	Bearing   float64
}

type StopTimeEvent struct {
	Delay int   // seconds, signed
	Time  int64 // epoch seconds
}

type StopTimeUpdate struct {
	StopID               string
	StopSequence         uint32
	ScheduleRelationship StopTimeScheduleRelationship
	Arrival              *StopTimeEvent
	Departure            *StopTimeEvent
}

// TripUpdate is keyed by TripID in the realtime store
type TripUpdate struct {
	Trip           TripDescriptor
	Vehicle        VehicleDescriptor
	StopTimeUpdate []StopTimeUpdate
	Timestamp      int64
}

// VehiclePosition is keyed by the vehicle ID in the realtime store.
// Trip is nil for non-commercial (depot / out-of-service) runs.
type VehiclePosition struct {
	Trip                *TripDescriptor
	Vehicle             VehicleDescriptor
	Position            Position
	CurrentStopSequence uint32
	StopID              string
	CurrentStatus       VehicleStopStatus
	OccupancyStatus     OccupancyStatus
	Timestamp           int64
}
