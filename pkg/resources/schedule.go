package resources

import (
	"encoding/csv"
	"io"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
)

// Trip is a scheduled run from the GTFS snapshot, immutable once loaded.
// Trip identifiers double as the operator's operation codes.
type Trip struct {
	TripID      string `csv:"trip_id"`
	RouteID     string `csv:"route_id"`
	DirectionID int    `csv:"direction_id"`
}

type Schedule struct {
	trips map[string]Trip

	Version  ArchiveVersion
	LoadedAt time.Time
}

func LoadSchedule(url string) (*Schedule, error) {
	archive, version, err := DownloadArchive(url)
	if err != nil {
		return nil, err
	}

	tripsFile, err := openArchiveFile(archive, "trips.txt")
	if err != nil {
		return nil, err
	}
	defer tripsFile.Close()

	schedule := &Schedule{
		trips:    map[string]Trip{},
		Version:  version,
		LoadedAt: time.Now(),
	}
	if err := schedule.parseTrips(tripsFile); err != nil {
		return nil, err
	}

	log.Info().Int("trips", len(schedule.trips)).Msg("Loaded GTFS schedule resource")

	return schedule, nil
}

func (s *Schedule) parseTrips(reader io.Reader) error {
	// Ignore those naughty records that have missing columns
	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = -1

	var records []Trip
	if err := gocsv.UnmarshalCSV(csvReader, &records); err != nil {
		return err
	}

	for _, record := range records {
		s.trips[record.TripID] = record
	}

	return nil
}

func (s *Schedule) Trip(tripID string) (Trip, bool) {
	trip, exists := s.trips[tripID]
	return trip, exists
}

// TripByOperationCode looks up a trip by its operation code, tolerating the
// operator prefix some sources carry.
func (s *Schedule) TripByOperationCode(operationCode string) (Trip, bool) {
	operationCode = strings.TrimPrefix(operationCode, "TCAR:")
	operationCode = strings.TrimPrefix(operationCode, "TCAR")

	trip, exists := s.trips[operationCode]
	return trip, exists
}
