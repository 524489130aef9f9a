package resources

import (
	"strings"
	"testing"
)

func TestParseCourseOperationBothDirections(t *testing.T) {
	hub := &Hub{
		courseOperation: map[string]string{},
		courseVersion:   map[string]string{},
		stopCodeByIDAP:  map[int]string{},
	}

	document := "Numero de course;Code op\xe9ration\n480675;TCAR:12345\n480676;TCAR:12346\n"
	if err := hub.parseCourseOperation(strings.NewReader(document)); err != nil {
		t.Fatal(err)
	}

	if operationCode, _ := hub.OperationCode("480675"); operationCode != "TCAR:12345" {
		t.Errorf("expected the course to resolve to its operation code, got %q", operationCode)
	}
	if course, _ := hub.OperationCode("TCAR:12346"); course != "480676" {
		t.Errorf("expected the operation code to resolve back to its course, got %q", course)
	}
	if _, exists := hub.OperationCode("999999"); exists {
		t.Error("expected an unknown course to miss")
	}
}

func TestParseStopsSkipsMalformedRows(t *testing.T) {
	hub := &Hub{
		courseOperation: map[string]string{},
		courseVersion:   map[string]string{},
		stopCodeByIDAP:  map[int]string{},
	}

	document := "Code;IDAP\nREPU1;901\nTHEA2;not-a-number\nGARE3;903\n"
	if err := hub.parseStops(strings.NewReader(document)); err != nil {
		t.Fatal(err)
	}

	if stopCode, _ := hub.StopCodeByIDAP(901); stopCode != "REPU1" {
		t.Errorf("expected IDAP 901 to map to REPU1, got %q", stopCode)
	}
	if stopCode, _ := hub.StopCodeByIDAP(903); stopCode != "GARE3" {
		t.Errorf("expected IDAP 903 to map to GARE3, got %q", stopCode)
	}
	if _, exists := hub.StopCodeByIDAP(902); exists {
		t.Error("expected the malformed row to be dropped")
	}
}

func TestParseCourses(t *testing.T) {
	hub := &Hub{
		courseOperation: map[string]string{},
		courseVersion:   map[string]string{},
		stopCodeByIDAP:  map[int]string{},
	}

	document := "Numero;CodeLigneVersion\n480675;40A\n"
	if err := hub.parseCourses(strings.NewReader(document)); err != nil {
		t.Fatal(err)
	}

	if lineVersion, _ := hub.LineVersion("480675"); lineVersion != "40A" {
		t.Errorf("expected line version 40A, got %q", lineVersion)
	}
}
