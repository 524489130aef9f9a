package gtfsrt

import (
	"fmt"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

const feedVersion = "2.0"

// BuildFeed frames a snapshot of the realtime store as a FULL_DATASET feed
// message. It performs no transformation beyond the framing itself.
func BuildFeed(tripUpdates []TripUpdate, vehiclePositions []VehiclePosition) *gtfs.FeedMessage {
	feed := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String(feedVersion),
			Incrementality:      gtfs.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(time.Now().Unix())),
		},
	}

	for _, tripUpdate := range tripUpdates {
		feed.Entity = append(feed.Entity, &gtfs.FeedEntity{
			Id:         proto.String(fmt.Sprintf("SM:%s", tripUpdate.Trip.TripID)),
			TripUpdate: tripUpdateToProto(tripUpdate),
		})
	}

	for _, vehiclePosition := range vehiclePositions {
		feed.Entity = append(feed.Entity, &gtfs.FeedEntity{
			Id:      proto.String(fmt.Sprintf("VM:%s", vehiclePosition.Vehicle.ID)),
			Vehicle: vehiclePositionToProto(vehiclePosition),
		})
	}

	return feed
}

func tripUpdateToProto(tripUpdate TripUpdate) *gtfs.TripUpdate {
	protoUpdate := &gtfs.TripUpdate{
		Trip:      tripDescriptorToProto(&tripUpdate.Trip),
		Vehicle:   vehicleDescriptorToProto(tripUpdate.Vehicle),
		Timestamp: proto.Uint64(uint64(tripUpdate.Timestamp)),
	}

	for _, stopTimeUpdate := range tripUpdate.StopTimeUpdate {
		protoStopTimeUpdate := &gtfs.TripUpdate_StopTimeUpdate{
			StopId:               proto.String(stopTimeUpdate.StopID),
			Arrival:              stopTimeEventToProto(stopTimeUpdate.Arrival),
			Departure:            stopTimeEventToProto(stopTimeUpdate.Departure),
			ScheduleRelationship: gtfs.TripUpdate_StopTimeUpdate_ScheduleRelationship(gtfs.TripUpdate_StopTimeUpdate_ScheduleRelationship_value[string(stopTimeUpdate.ScheduleRelationship)]).Enum(),
		}
		if stopTimeUpdate.StopSequence != 0 {
			protoStopTimeUpdate.StopSequence = proto.Uint32(stopTimeUpdate.StopSequence)
		}

		protoUpdate.StopTimeUpdate = append(protoUpdate.StopTimeUpdate, protoStopTimeUpdate)
	}

	return protoUpdate
}

func vehiclePositionToProto(vehiclePosition VehiclePosition) *gtfs.VehiclePosition {
	protoPosition := &gtfs.VehiclePosition{
		Trip:    tripDescriptorToProto(vehiclePosition.Trip),
		Vehicle: vehicleDescriptorToProto(vehiclePosition.Vehicle),
		Position: &gtfs.Position{
			Latitude:  proto.Float32(float32(vehiclePosition.Position.Latitude)),
			Longitude: proto.Float32(float32(vehiclePosition.Position.Longitude)),
			Bearing:   proto.Float32(float32(vehiclePosition.Position.Bearing)),
		},
		Timestamp: proto.Uint64(uint64(vehiclePosition.Timestamp)),
	}

	if vehiclePosition.StopID != "" {
		protoPosition.StopId = proto.String(vehiclePosition.StopID)
	}
	if vehiclePosition.CurrentStopSequence != 0 {
		protoPosition.CurrentStopSequence = proto.Uint32(vehiclePosition.CurrentStopSequence)
	}
	if vehiclePosition.CurrentStatus != "" {
		protoPosition.CurrentStatus = gtfs.VehiclePosition_VehicleStopStatus(gtfs.VehiclePosition_VehicleStopStatus_value[string(vehiclePosition.CurrentStatus)]).Enum()
	}
	if vehiclePosition.OccupancyStatus != "" {
		protoPosition.OccupancyStatus = gtfs.VehiclePosition_OccupancyStatus(gtfs.VehiclePosition_OccupancyStatus_value[string(vehiclePosition.OccupancyStatus)]).Enum()
	}

	return protoPosition
}

func tripDescriptorToProto(tripDescriptor *TripDescriptor) *gtfs.TripDescriptor {
	if tripDescriptor == nil {
		return nil
	}

	return &gtfs.TripDescriptor{
		TripId:               proto.String(tripDescriptor.TripID),
		RouteId:              proto.String(tripDescriptor.RouteID),
		DirectionId:          proto.Uint32(uint32(tripDescriptor.DirectionID)),
		ScheduleRelationship: gtfs.TripDescriptor_ScheduleRelationship(gtfs.TripDescriptor_ScheduleRelationship_value[string(tripDescriptor.ScheduleRelationship)]).Enum(),
	}
}

func vehicleDescriptorToProto(vehicleDescriptor VehicleDescriptor) *gtfs.VehicleDescriptor {
	protoDescriptor := &gtfs.VehicleDescriptor{
		Id: proto.String(vehicleDescriptor.ID),
	}
	if vehicleDescriptor.Label != "" {
		protoDescriptor.Label = proto.String(vehicleDescriptor.Label)
	}

	return protoDescriptor
}
