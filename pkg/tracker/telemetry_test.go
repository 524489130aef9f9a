package tracker

import (
	"testing"
	"time"
)

func TestParcNumber(t *testing.T) {
	testCases := []struct {
		vehicleRef string
		parcNumber string
	}{
		{"TCAR:Vehicle:1:1234", "1234"},
		{"TCAR:Vehicle:1:527:extra", "527"},
		{"TCAR:Vehicle:1234", ""},
		{"", ""},
	}

	for _, testCase := range testCases {
		if parcNumber := ParcNumber(testCase.vehicleRef); parcNumber != testCase.parcNumber {
			t.Errorf("ParcNumber(%q) = %q, expected %q", testCase.vehicleRef, parcNumber, testCase.parcNumber)
		}
	}
}

func TestParseRecordedAt(t *testing.T) {
	timezone, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Fatal(err)
	}

	recordedAt, err := ParseRecordedAt("2024-03-01T12:30:45", timezone)
	if err != nil {
		t.Fatal(err)
	}

	if recordedAt.Hour() != 12 || recordedAt.Minute() != 30 || recordedAt.Second() != 45 {
		t.Errorf("unexpected wall clock time: %v", recordedAt)
	}
	if recordedAt.Location() != timezone {
		t.Errorf("expected the time to be anchored in %v, got %v", timezone, recordedAt.Location())
	}

	if _, err := ParseRecordedAt("2024-03-01 12:30:45", timezone); err == nil {
		t.Error("expected an error for a malformed recorded time")
	}
}

func TestTruncateToMinute(t *testing.T) {
	if truncated := truncateToMinute("2024-03-01T12:30:45"); truncated != "2024-03-01T12:30" {
		t.Errorf("expected the seconds to be dropped, got %q", truncated)
	}
}

func TestLineFromDestination(t *testing.T) {
	if line := lineFromDestination("#lineId:F1:2"); line != "F1" {
		t.Errorf("expected line F1, got %q", line)
	}
	if line := lineFromDestination("garbage"); line != "garbage" {
		t.Errorf("expected the destination to pass through, got %q", line)
	}
}

func TestCurrentStop(t *testing.T) {
	first := MonitoredStopTime{StopPointId: 101, StopPointOrder: 5}
	second := MonitoredStopTime{StopPointId: 102, StopPointOrder: 6}

	atStop := MonitoredVehicle{VehicleAtStop: true, StopTimeList: []MonitoredStopTime{first, second}}
	if stop := currentStop(atStop); stop.StopPointId != 101 {
		t.Errorf("expected the monitored stop while at stop, got %d", stop.StopPointId)
	}

	departed := MonitoredVehicle{StopTimeList: []MonitoredStopTime{first, second}}
	if stop := currentStop(departed); stop.StopPointId != 102 {
		t.Errorf("expected the next stop after departure, got %d", stop.StopPointId)
	}

	origin := MonitoredVehicle{StopTimeList: []MonitoredStopTime{{StopPointId: 100, StopPointOrder: 1}}}
	if stop := currentStop(origin); stop.StopPointId != 100 {
		t.Errorf("expected the origin stop, got %d", stop.StopPointId)
	}

	lastStop := MonitoredVehicle{StopTimeList: []MonitoredStopTime{first}}
	if stop := currentStop(lastStop); stop.StopPointId != 101 {
		t.Errorf("expected the only remaining stop, got %d", stop.StopPointId)
	}
}
