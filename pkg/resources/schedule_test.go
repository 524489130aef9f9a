package resources

import (
	"strings"
	"testing"
)

func TestParseTripsToleratesRaggedRows(t *testing.T) {
	schedule := &Schedule{trips: map[string]Trip{}}

	document := "trip_id,route_id,direction_id\n12345,40,0\n12346,40\n12347,41,1\n"
	if err := schedule.parseTrips(strings.NewReader(document)); err != nil {
		t.Fatal(err)
	}

	if len(schedule.trips) != 3 {
		t.Errorf("expected three trips, got %d", len(schedule.trips))
	}

	trip, exists := schedule.Trip("12347")
	if !exists {
		t.Fatal("expected trip 12347 to be loaded")
	}
	if trip.RouteID != "41" || trip.DirectionID != 1 {
		t.Errorf("unexpected trip record: %+v", trip)
	}
}

func TestTripByOperationCode(t *testing.T) {
	schedule := &Schedule{trips: map[string]Trip{
		"12345": {TripID: "12345", RouteID: "40", DirectionID: 0},
	}}

	testCases := []struct {
		operationCode string
		found         bool
	}{
		{"12345", true},
		{"TCAR:12345", true},
		{"TCAR12345", true},
		{"TCAR:99999", false},
	}

	for _, testCase := range testCases {
		if _, found := schedule.TripByOperationCode(testCase.operationCode); found != testCase.found {
			t.Errorf("TripByOperationCode(%q) found=%v, expected %v", testCase.operationCode, found, testCase.found)
		}
	}
}
