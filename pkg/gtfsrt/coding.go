package gtfsrt

import (
	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

func Encode(feed *gtfs.FeedMessage) ([]byte, error) {
	return proto.Marshal(feed)
}

func Decode(payload []byte) (*gtfs.FeedMessage, error) {
	feed := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(payload, feed); err != nil {
		return nil, err
	}

	return feed, nil
}

func EncodeJSON(feed *gtfs.FeedMessage) ([]byte, error) {
	return protojson.MarshalOptions{UseProtoNames: false}.Marshal(feed)
}

// TripUpdateFromProto converts a decoded trip update entity back into the
// canonical record shape
func TripUpdateFromProto(protoUpdate *gtfs.TripUpdate) TripUpdate {
	tripUpdate := TripUpdate{
		Vehicle:   vehicleDescriptorFromProto(protoUpdate.GetVehicle()),
		Timestamp: int64(protoUpdate.GetTimestamp()),
	}
	if tripDescriptor := tripDescriptorFromProto(protoUpdate.GetTrip()); tripDescriptor != nil {
		tripUpdate.Trip = *tripDescriptor
	}

	for _, protoStopTimeUpdate := range protoUpdate.GetStopTimeUpdate() {
		tripUpdate.StopTimeUpdate = append(tripUpdate.StopTimeUpdate, StopTimeUpdate{
			StopID:               protoStopTimeUpdate.GetStopId(),
			StopSequence:         protoStopTimeUpdate.GetStopSequence(),
			ScheduleRelationship: StopTimeScheduleRelationship(protoStopTimeUpdate.GetScheduleRelationship().String()),
			Arrival:              stopTimeEventFromProto(protoStopTimeUpdate.Arrival),
			Departure:            stopTimeEventFromProto(protoStopTimeUpdate.Departure),
		})
	}

	return tripUpdate
}

// VehiclePositionFromProto converts a decoded vehicle position entity back
// into the canonical record shape
func VehiclePositionFromProto(protoPosition *gtfs.VehiclePosition) VehiclePosition {
	vehiclePosition := VehiclePosition{
		Trip:                tripDescriptorFromProto(protoPosition.GetTrip()),
		Vehicle:             vehicleDescriptorFromProto(protoPosition.GetVehicle()),
		CurrentStopSequence: protoPosition.GetCurrentStopSequence(),
		StopID:              protoPosition.GetStopId(),
		Timestamp:           int64(protoPosition.GetTimestamp()),
	}

	if position := protoPosition.GetPosition(); position != nil {
		vehiclePosition.Position = Position{
			Latitude:  float64(position.GetLatitude()),
			Longitude: float64(position.GetLongitude()),
			Bearing:   float64(position.GetBearing()),
		}
	}
	if protoPosition.CurrentStatus != nil {
		vehiclePosition.CurrentStatus = VehicleStopStatus(protoPosition.GetCurrentStatus().String())
	}
	if protoPosition.OccupancyStatus != nil {
		vehiclePosition.OccupancyStatus = OccupancyStatus(protoPosition.GetOccupancyStatus().String())
	}

	return vehiclePosition
}

func tripDescriptorFromProto(protoDescriptor *gtfs.TripDescriptor) *TripDescriptor {
	if protoDescriptor == nil {
		return nil
	}

	return &TripDescriptor{
		TripID:               protoDescriptor.GetTripId(),
		RouteID:              protoDescriptor.GetRouteId(),
		DirectionID:          int(protoDescriptor.GetDirectionId()),
		ScheduleRelationship: TripScheduleRelationship(protoDescriptor.GetScheduleRelationship().String()),
	}
}

func vehicleDescriptorFromProto(protoDescriptor *gtfs.VehicleDescriptor) VehicleDescriptor {
	return VehicleDescriptor{
		ID:    protoDescriptor.GetId(),
		Label: protoDescriptor.GetLabel(),
	}
}

func stopTimeEventFromProto(protoEvent *gtfs.TripUpdate_StopTimeEvent) *StopTimeEvent {
	if protoEvent == nil {
		return nil
	}

	return &StopTimeEvent{
		Delay: int(protoEvent.GetDelay()),
		Time:  protoEvent.GetTime(),
	}
}

func stopTimeEventToProto(event *StopTimeEvent) *gtfs.TripUpdate_StopTimeEvent {
	if event == nil {
		return nil
	}

	return &gtfs.TripUpdate_StopTimeEvent{
		Delay: proto.Int32(int32(event.Delay)),
		Time:  proto.Int64(event.Time),
	}
}
