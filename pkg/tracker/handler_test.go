package tracker

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rouenrt/rouenrt/pkg/config"
	"github.com/rouenrt/rouenrt/pkg/gtfsrt"
	"github.com/rouenrt/rouenrt/pkg/resources"
	"github.com/rouenrt/rouenrt/pkg/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	_ "time/tzdata"
)

type stubBackup map[string]gtfsrt.VehiclePosition

func (s stubBackup) LastKnown(vehicleID string) (gtfsrt.VehiclePosition, bool) {
	vehiclePosition, exists := s[vehicleID]
	return vehiclePosition, exists
}

type stubOccupancy struct {
	status gtfsrt.OccupancyStatus
}

func (s stubOccupancy) VehicleOccupancy(ctx context.Context, parcNumber string) (gtfsrt.OccupancyStatus, bool) {
	if s.status == "" {
		return "", false
	}

	return s.status, true
}

func buildArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buffer bytes.Buffer
	writer := zip.NewWriter(&buffer)
	for name, content := range files {
		file, err := writer.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := file.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	return buffer.Bytes()
}

func serveArchive(t *testing.T, payload []byte) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Last-Modified", "Fri, 01 Mar 2024 00:00:00 GMT")
		if r.Method == http.MethodHead {
			return
		}
		w.Write(payload)
	}))
	t.Cleanup(server.Close)

	return server
}

func testResources(t *testing.T) (*resources.Manager, *resources.StopList) {
	t.Helper()

	gtfsArchive := buildArchive(t, map[string]string{
		"trips.txt": "trip_id,route_id,direction_id\n12345,40,0\n",
	})
	hubArchive := buildArchive(t, map[string]string{
		"COURSE_OPERATION.TXT": "Numero de course;Code op\xe9ration\n480675;TCAR:12345\n",
		"COURSE.TXT":           "Numero;CodeLigneVersion\n480675;40A\n999999;22B\n",
		"ARRET.TXT":            "Code;IDAP\nREPU1;901\nTHEA2;902\n",
	})

	gtfsServer := serveArchive(t, gtfsArchive)
	hubServer := serveArchive(t, hubArchive)

	stopServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Data":[{"Id":101,"Code":"REPU1"},{"Id":102,"Code":"THEA2"}]}`))
	}))
	t.Cleanup(stopServer.Close)

	manager := &resources.Manager{
		GTFSFeedURL:    gtfsServer.URL,
		HubFeedURL:     hubServer.URL,
		MaxSnapshotAge: time.Hour,
	}
	if err := manager.LoadInitial(); err != nil {
		t.Fatal(err)
	}

	stopList := resources.NewStopList(stopServer.URL)
	if err := stopList.Refresh(); err != nil {
		t.Fatal(err)
	}

	return manager, stopList
}

func testConfig() *config.Config {
	return &config.Config{
		DepotDestinations: []string{"ROUEN DEPOT"},
		Lines: map[string]config.LineData{
			"F1": {Code: "40", Destinations: []string{"Plaine de la Ronce", "Stade Diochon"}},
		},
	}
}

func testTracker(t *testing.T) *Tracker {
	t.Helper()

	manager, stopList := testResources(t)
	timezone, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Fatal(err)
	}

	return &Tracker{
		Config:      testConfig(),
		Store:       store.NewStore(10 * time.Minute),
		Resources:   manager,
		Stops:       stopList,
		Backup:      stubBackup{},
		Occupancy:   stubOccupancy{status: gtfsrt.OccupancyManySeatsAvailable},
		MaxEventAge: 10 * time.Minute,
		Timezone:    timezone,
	}
}

func testVehicle(timezone *time.Location, recordedAt time.Time, latitude float64) MonitoredVehicle {
	aimed := recordedAt.In(timezone).Add(5 * time.Minute)
	expected := aimed.Add(2 * time.Minute)

	return MonitoredVehicle{
		VehicleRef:     "TCAR:Vehicle:1:1234",
		VJourneyId:     480675,
		LineNumber:     "F1",
		Direction:      1,
		Latitude:       latitude,
		Longitude:      1.099971,
		Bearing:        90,
		Destination:    "Plaine de la Ronce",
		RecordedAtTime: recordedAt.In(timezone).Format("2006-01-02T15:04:05"),
		StopTimeList: []MonitoredStopTime{
			{
				IsMonitored:    true,
				StopPointId:    101,
				StopPointOrder: 3,
				AimedTime:      aimed.Format("2006-01-02T15:04:05"),
				ExpectedTime:   expected.Format(time.RFC3339),
			},
			{
				IsCancelled:    true,
				StopPointId:    102,
				StopPointOrder: 4,
			},
			{
				StopPointId:    102,
				StopPointOrder: 5,
			},
		},
	}
}

func TestHandleVehicleCommercialRun(t *testing.T) {
	vehicleTracker := testTracker(t)
	now := time.Now()

	// The first report only seeds the last-position cache
	vehicleTracker.HandleVehicle("F1", testVehicle(vehicleTracker.Timezone, now.Add(-2*time.Minute), 49.4431))
	if _, exists := vehicleTracker.Store.VehiclePosition("1234"); exists {
		t.Fatal("expected the first report to be withheld")
	}

	vehicleTracker.HandleVehicle("F1", testVehicle(vehicleTracker.Timezone, now.Add(-time.Minute), 49.4445))

	tripUpdate, exists := vehicleTracker.Store.TripUpdate("12345")
	if !exists {
		t.Fatal("expected a trip update for the resolved trip")
	}
	if tripUpdate.Trip.RouteID != "40" || tripUpdate.Trip.ScheduleRelationship != gtfsrt.TripScheduled {
		t.Errorf("unexpected trip descriptor: %+v", tripUpdate.Trip)
	}
	if len(tripUpdate.StopTimeUpdate) != 3 {
		t.Fatalf("expected three stop time updates, got %d", len(tripUpdate.StopTimeUpdate))
	}

	monitored := tripUpdate.StopTimeUpdate[0]
	if monitored.StopID != "REPU1" || monitored.ScheduleRelationship != gtfsrt.StopTimeScheduled {
		t.Errorf("unexpected monitored stop time update: %+v", monitored)
	}
	if monitored.Arrival == nil || monitored.Arrival.Delay != 120 {
		t.Errorf("expected a 120s delay, got %+v", monitored.Arrival)
	}

	if cancelled := tripUpdate.StopTimeUpdate[1]; cancelled.ScheduleRelationship != gtfsrt.StopTimeSkipped {
		t.Errorf("expected a cancelled stop to be SKIPPED, got %+v", cancelled)
	}
	if unmonitored := tripUpdate.StopTimeUpdate[2]; unmonitored.ScheduleRelationship != gtfsrt.StopTimeNoData {
		t.Errorf("expected an unmonitored stop to carry NO_DATA, got %+v", unmonitored)
	}

	vehiclePosition, exists := vehicleTracker.Store.VehiclePosition("1234")
	if !exists {
		t.Fatal("expected a vehicle position")
	}
	if vehiclePosition.Trip == nil || vehiclePosition.Trip.TripID != "12345" {
		t.Errorf("expected the vehicle to carry its trip, got %+v", vehiclePosition.Trip)
	}
	if vehiclePosition.CurrentStatus != gtfsrt.VehicleInTransitTo {
		t.Errorf("expected IN_TRANSIT_TO, got %q", vehiclePosition.CurrentStatus)
	}
	if vehiclePosition.OccupancyStatus != gtfsrt.OccupancyManySeatsAvailable {
		t.Errorf("unexpected occupancy status %q", vehiclePosition.OccupancyStatus)
	}
}

func TestHandleVehicleDepotRun(t *testing.T) {
	vehicleTracker := testTracker(t)
	now := time.Now()

	vehicle := testVehicle(vehicleTracker.Timezone, now.Add(-2*time.Minute), 49.4431)
	vehicle.Destination = "ROUEN DEPOT"
	vehicleTracker.HandleVehicle("F1", vehicle)

	vehicle = testVehicle(vehicleTracker.Timezone, now.Add(-time.Minute), 49.4445)
	vehicle.Destination = "ROUEN DEPOT"
	// An unresolvable journey must not matter on a dead run
	vehicle.VJourneyId = 999999
	vehicleTracker.HandleVehicle("F1", vehicle)

	if tripIDs := vehicleTracker.Store.TripIDs(); len(tripIDs) != 0 {
		t.Errorf("expected no trip updates for a depot run, got %v", tripIDs)
	}

	vehiclePosition, exists := vehicleTracker.Store.VehiclePosition("1234")
	if !exists {
		t.Fatal("expected a vehicle position for a depot run")
	}
	if vehiclePosition.Trip != nil {
		t.Errorf("expected no trip descriptor, got %+v", vehiclePosition.Trip)
	}
	if vehiclePosition.OccupancyStatus != gtfsrt.OccupancyNotBoardable {
		t.Errorf("expected NOT_BOARDABLE, got %q", vehiclePosition.OccupancyStatus)
	}
	if vehiclePosition.StopID != "" {
		t.Errorf("expected no stop reference, got %q", vehiclePosition.StopID)
	}
}

func TestHandleVehicleUnresolvedJourney(t *testing.T) {
	var logOutput bytes.Buffer
	previous := log.Logger
	log.Logger = zerolog.New(&logOutput)
	defer func() { log.Logger = previous }()

	vehicleTracker := testTracker(t)
	now := time.Now()

	vehicle := testVehicle(vehicleTracker.Timezone, now.Add(-2*time.Minute), 49.4431)
	vehicle.VJourneyId = 999999
	vehicleTracker.HandleVehicle("F1", vehicle)

	vehicle = testVehicle(vehicleTracker.Timezone, now.Add(-time.Minute), 49.4445)
	vehicle.VJourneyId = 999999
	vehicleTracker.HandleVehicle("F1", vehicle)

	if _, exists := vehicleTracker.Store.VehiclePosition("1234"); exists {
		t.Error("expected an unresolvable commercial run to be dropped")
	}
	if !strings.Contains(logOutput.String(), `"lineversion":"22B"`) {
		t.Errorf("expected the crosswalk line version in the diagnostic, got %s", logOutput.String())
	}
}

func TestHandleVehicleEmptyStopList(t *testing.T) {
	vehicleTracker := testTracker(t)
	now := time.Now()

	vehicle := testVehicle(vehicleTracker.Timezone, now.Add(-2*time.Minute), 49.4431)
	vehicle.StopTimeList = nil
	vehicleTracker.HandleVehicle("F1", vehicle)

	vehicle = testVehicle(vehicleTracker.Timezone, now.Add(-time.Minute), 49.4445)
	vehicle.StopTimeList = nil
	vehicleTracker.HandleVehicle("F1", vehicle)

	if len(vehicleTracker.Store.TripIDs()) != 0 || len(vehicleTracker.Store.VehicleIDs()) != 0 {
		t.Error("expected a report without stop times to leave the store untouched")
	}
}

func TestHandleVehicleUntrustedTrip(t *testing.T) {
	vehicleTracker := testTracker(t)
	now := time.Now()

	vehicleTracker.HandleVehicle("F1", testVehicle(vehicleTracker.Timezone, now.Add(-3*time.Minute), 49.4431))
	vehicleTracker.HandleVehicle("F1", testVehicle(vehicleTracker.Timezone, now.Add(-2*time.Minute), 49.4445))

	previous, exists := vehicleTracker.Store.VehiclePosition("1234")
	if !exists {
		t.Fatal("expected the trusted report to be applied")
	}

	// A direction flip disagrees with the line dataset: the trip assignment
	// is withheld but the vehicle keeps moving.
	vehicle := testVehicle(vehicleTracker.Timezone, now.Add(-time.Minute), 49.4460)
	vehicle.Direction = 2
	vehicleTracker.HandleVehicle("F1", vehicle)

	vehiclePosition, _ := vehicleTracker.Store.VehiclePosition("1234")
	if vehiclePosition.Position.Latitude != 49.4460 {
		t.Error("expected the position to advance despite the untrusted trip")
	}
	if vehiclePosition.Timestamp <= previous.Timestamp {
		t.Error("expected the timestamp to advance despite the untrusted trip")
	}
	if vehiclePosition.Trip == nil || vehiclePosition.Trip.TripID != previous.Trip.TripID {
		t.Error("expected the previous trip assignment to be preserved")
	}
}

func TestHandleVehicleRejectsOldReports(t *testing.T) {
	vehicleTracker := testTracker(t)
	now := time.Now()

	vehicleTracker.HandleVehicle("F1", testVehicle(vehicleTracker.Timezone, now.Add(-time.Hour), 49.4431))
	vehicleTracker.HandleVehicle("F1", testVehicle(vehicleTracker.Timezone, now.Add(-30*time.Minute), 49.4445))

	if _, exists := vehicleTracker.Store.VehiclePosition("1234"); exists {
		t.Error("expected a half-hour old report to be discarded")
	}
}
