package tracker

import (
	"strings"
	"time"
)

// MonitoredVehicle is a raw vehicle report as pushed on the telemetry bus.
type MonitoredVehicle struct {
	OperatorRef       string              `json:"OperatorRef"`
	OperatorId        int                 `json:"OperatorId"`
	VehicleRef        string              `json:"VehicleRef"`
	VJourneyId        int                 `json:"VJourneyId"`
	VJourneyMode      string              `json:"VJourneyMode"`
	LineName          string              `json:"LineName"`
	LineNumber        string              `json:"LineNumber"`
	LineId            int                 `json:"LineId"`
	Direction         int                 `json:"Direction"`
	Latitude          float64             `json:"Latitude"`
	Longitude         float64             `json:"Longitude"`
	VehicleAtStop     bool                `json:"VehicleAtStop"`
	Bearing           float64             `json:"Bearing"`
	Destination       string              `json:"Destination"`
	RecordedAtTime    string              `json:"RecordedAtTime"`
	PushedDisplayTime string              `json:"PushedDisplayTime"`
	IsDisrupted       bool                `json:"IsDisrupted"`
	StopTimeList      []MonitoredStopTime `json:"StopTimeList"`
}

type MonitoredStopTime struct {
	IsMonitored    bool   `json:"IsMonitored"`
	IsCancelled    bool   `json:"IsCancelled"`
	IsDisrupted    bool   `json:"IsDisrupted"`
	StopPointId    int    `json:"StopPointId"`
	StopPointName  string `json:"StopPointName"`
	StopPointOrder int    `json:"StopPointOrder"`
	AimedTime      string `json:"AimedTime"`
	ExpectedTime   string `json:"ExpectedTime"`
	WaitingTime    int    `json:"WaitingTime"`
}

// ParcNumber extracts the fleet number from a composite vehicle reference
// such as "TCAR:Vehicle:1:1234".
func ParcNumber(vehicleRef string) string {
	parts := strings.Split(vehicleRef, ":")
	if len(parts) < 4 {
		return ""
	}

	return parts[3]
}

const localTimeLayout = "2006-01-02T15:04:05"

// ParseRecordedAt interprets the wall-clock recorded time of a telemetry
// report in the network's timezone.
func ParseRecordedAt(recordedAtTime string, timezone *time.Location) (time.Time, error) {
	return time.ParseInLocation(localTimeLayout, recordedAtTime, timezone)
}
