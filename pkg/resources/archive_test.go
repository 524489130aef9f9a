package resources

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIsArchiveStale(t *testing.T) {
	lastModified := "Fri, 01 Mar 2024 00:00:00 GMT"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Last-Modified", lastModified)
	}))
	defer server.Close()

	version := ArchiveVersion{LastModified: lastModified}

	stale, err := IsArchiveStale(server.URL, version)
	if err != nil {
		t.Fatal(err)
	}
	if stale {
		t.Error("expected an unchanged archive not to be stale")
	}

	lastModified = "Sat, 02 Mar 2024 00:00:00 GMT"
	stale, err = IsArchiveStale(server.URL, version)
	if err != nil {
		t.Fatal(err)
	}
	if !stale {
		t.Error("expected a changed Last-Modified to mark the archive stale")
	}
}

func TestIsArchiveStaleFallsBackToETag(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v2"`)
	}))
	defer server.Close()

	stale, err := IsArchiveStale(server.URL, ArchiveVersion{ETag: `"v1"`})
	if err != nil {
		t.Fatal(err)
	}
	if !stale {
		t.Error("expected a changed ETag to mark the archive stale")
	}

	stale, err = IsArchiveStale(server.URL, ArchiveVersion{ETag: `"v2"`})
	if err != nil {
		t.Fatal(err)
	}
	if stale {
		t.Error("expected a matching ETag not to be stale")
	}
}

func TestIsArchiveStaleWithoutCachingHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	stale, err := IsArchiveStale(server.URL, ArchiveVersion{LastModified: "anything"})
	if err != nil {
		t.Fatal(err)
	}
	if stale {
		t.Error("expected an origin without caching headers never to look stale")
	}
}

func TestStopListRefresh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Data":[{"Id":101,"Code":"REPU1"},{"Id":102,"Code":"THEA2"}]}`))
	}))
	defer server.Close()

	stopList := NewStopList(server.URL)
	if err := stopList.Refresh(); err != nil {
		t.Fatal(err)
	}

	if stopCode, _ := stopList.StopCode(101); stopCode != "REPU1" {
		t.Errorf("expected stop 101 to map to REPU1, got %q", stopCode)
	}
	if _, exists := stopList.StopCode(999); exists {
		t.Error("expected an unknown stop point to miss")
	}
}

func TestStopListRefreshKeepsPreviousEntriesOnFailure(t *testing.T) {
	failing := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"Data":[{"Id":101,"Code":"REPU1"}]}`))
	}))
	defer server.Close()

	stopList := NewStopList(server.URL)
	if err := stopList.Refresh(); err != nil {
		t.Fatal(err)
	}

	failing = true
	if err := stopList.Refresh(); err == nil {
		t.Error("expected the failed refresh to report an error")
	}

	if stopCode, _ := stopList.StopCode(101); stopCode != "REPU1" {
		t.Error("expected the previous entries to survive a failed refresh")
	}
}

func TestFetchFeedDiscardsStaleDocuments(t *testing.T) {
	staleHeader := time.Now().Add(-time.Hour)

	payload, err := buildEncodedFeed(t, staleHeader)
	if err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	feed, err := FetchFeed(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	if len(feed.GetEntity()) != 0 {
		t.Errorf("expected a stale feed to come back empty, got %d entities", len(feed.GetEntity()))
	}
}

func TestFetchFeedNoContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	feed, err := FetchFeed(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	if len(feed.GetEntity()) != 0 {
		t.Errorf("expected an empty feed, got %d entities", len(feed.GetEntity()))
	}
}
