package resources

import (
	"testing"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/rouenrt/rouenrt/pkg/gtfsrt"
	"google.golang.org/protobuf/proto"
)

func buildEncodedFeed(t *testing.T, headerTime time.Time) ([]byte, error) {
	t.Helper()

	feed := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      gtfs.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(headerTime.Unix())),
		},
		Entity: []*gtfs.FeedEntity{
			{
				Id: proto.String("VM:1234"),
				Vehicle: &gtfs.VehiclePosition{
					Vehicle:   &gtfs.VehicleDescriptor{Id: proto.String("1234")},
					Timestamp: proto.Uint64(uint64(headerTime.Unix())),
				},
			},
		},
	}

	return gtfsrt.Encode(feed)
}

func buildEncodedVehicleFeed(t *testing.T, vehicleID string, tripID string) ([]byte, error) {
	t.Helper()

	now := time.Now()

	feed := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      gtfs.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(now.Unix())),
		},
		Entity: []*gtfs.FeedEntity{
			{
				Id: proto.String("VM:" + vehicleID),
				Vehicle: &gtfs.VehiclePosition{
					Trip:      &gtfs.TripDescriptor{TripId: proto.String(tripID)},
					Vehicle:   &gtfs.VehicleDescriptor{Id: proto.String(vehicleID)},
					Timestamp: proto.Uint64(uint64(now.Unix())),
				},
			},
		},
	}

	return gtfsrt.Encode(feed)
}
