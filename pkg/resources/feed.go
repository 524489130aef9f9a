package resources

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/rouenrt/rouenrt/pkg/gtfsrt"
)

const feedMaxAge = 10 * time.Minute

// FetchFeed downloads and decodes a GTFS-RT resource. A 204 response or a
// feed whose header timestamp is too old yields an empty entity list rather
// than stale data.
func FetchFeed(url string) (*gtfs.FeedMessage, error) {
	response, err := httpClient.Get(url)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNoContent {
		return &gtfs.FeedMessage{}, nil
	}
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch GTFS-RT at '%s': status code %d", url, response.StatusCode)
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}

	feed, err := gtfsrt.Decode(body)
	if err != nil {
		return nil, err
	}

	headerTime := time.Unix(int64(feed.GetHeader().GetTimestamp()), 0)
	if time.Since(headerTime) >= feedMaxAge {
		return &gtfs.FeedMessage{Header: feed.Header}, nil
	}

	return feed, nil
}
