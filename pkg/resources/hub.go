package resources

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding/charmap"
)

// Hub is the operator's crosswalk resource. Its files are latin1 encoded
// and semicolon delimited.
type Hub struct {
	courseOperation map[string]string
	courseVersion   map[string]string
	stopCodeByIDAP  map[int]string

	Version  ArchiveVersion
	LoadedAt time.Time
}

type courseOperationRecord struct {
	Course    string `csv:"Numero de course"`
	Operation string `csv:"Code opération"`
}

type courseRecord struct {
	Numero      string `csv:"Numero"`
	LineVersion string `csv:"CodeLigneVersion"`
}

type stopRecord struct {
	Code string `csv:"Code"`
	IDAP string `csv:"IDAP"`
}

func LoadHub(url string) (*Hub, error) {
	archive, version, err := DownloadArchive(url)
	if err != nil {
		return nil, err
	}

	hub := &Hub{
		courseOperation: map[string]string{},
		courseVersion:   map[string]string{},
		stopCodeByIDAP:  map[int]string{},
		Version:         version,
		LoadedAt:        time.Now(),
	}

	courseOperationFile, err := openArchiveFile(archive, "COURSE_OPERATION.TXT")
	if err != nil {
		return nil, err
	}
	defer courseOperationFile.Close()
	if err := hub.parseCourseOperation(courseOperationFile); err != nil {
		return nil, err
	}

	courseFile, err := openArchiveFile(archive, "COURSE.TXT")
	if err != nil {
		return nil, err
	}
	defer courseFile.Close()
	if err := hub.parseCourses(courseFile); err != nil {
		return nil, err
	}

	stopsFile, err := openArchiveFile(archive, "ARRET.TXT")
	if err != nil {
		return nil, err
	}
	defer stopsFile.Close()
	if err := hub.parseStops(stopsFile); err != nil {
		return nil, err
	}

	log.Info().
		Int("courses", len(hub.courseVersion)).
		Int("stops", len(hub.stopCodeByIDAP)).
		Msg("Loaded HUB crosswalk resource")

	return hub, nil
}

func hubCSVReader(reader io.Reader) *csv.Reader {
	csvReader := csv.NewReader(charmap.ISO8859_1.NewDecoder().Reader(reader))
	csvReader.Comma = ';'
	csvReader.FieldsPerRecord = -1

	return csvReader
}

func (h *Hub) parseCourseOperation(reader io.Reader) error {
	var records []courseOperationRecord
	if err := gocsv.UnmarshalCSV(hubCSVReader(reader), &records); err != nil {
		return err
	}

	// Both directions so either identifier resolves the other
	for _, record := range records {
		h.courseOperation[record.Course] = record.Operation
		h.courseOperation[record.Operation] = record.Course
	}

	return nil
}

func (h *Hub) parseCourses(reader io.Reader) error {
	var records []courseRecord
	if err := gocsv.UnmarshalCSV(hubCSVReader(reader), &records); err != nil {
		return err
	}

	for _, record := range records {
		h.courseVersion[record.Numero] = record.LineVersion
	}

	return nil
}

func (h *Hub) parseStops(reader io.Reader) error {
	var records []stopRecord
	if err := gocsv.UnmarshalCSV(hubCSVReader(reader), &records); err != nil {
		return err
	}

	for _, record := range records {
		idap, err := strconv.Atoi(record.IDAP)
		if err != nil {
			continue
		}
		h.stopCodeByIDAP[idap] = record.Code
	}

	return nil
}

// OperationCode maps a live journey (course) identifier to its
// static-schedule operation code, or back.
func (h *Hub) OperationCode(course string) (string, bool) {
	operationCode, exists := h.courseOperation[course]
	return operationCode, exists
}

func (h *Hub) LineVersion(course string) (string, bool) {
	lineVersion, exists := h.courseVersion[course]
	return lineVersion, exists
}

func (h *Hub) StopCodeByIDAP(idap int) (string, bool) {
	stopCode, exists := h.stopCodeByIDAP[idap]
	return stopCode, exists
}
