package resources

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTripFinderRefresh(t *testing.T) {
	payload, err := buildEncodedVehicleFeed(t, "1234", "12345")
	if err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	finder := NewTripFinder(server.URL, time.Hour)
	if err := finder.Refresh(); err != nil {
		t.Fatal(err)
	}

	tripID, found := finder.TripID("1234")
	if !found {
		t.Fatal("expected an observation for vehicle 1234")
	}
	if tripID != "12345" {
		t.Errorf("expected trip 12345, got %q", tripID)
	}

	if _, found := finder.TripID("9999"); found {
		t.Error("expected no observation for an unseen vehicle")
	}
}

func TestTripFinderExpiresObservations(t *testing.T) {
	finder := NewTripFinder("", time.Hour)
	finder.observations["1234"] = tripObservation{
		tripID:     "12345",
		observedAt: time.Now().Add(-2 * time.Hour),
	}

	if _, found := finder.TripID("1234"); found {
		t.Error("expected an old observation to be expired")
	}
}
