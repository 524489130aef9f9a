package occupancy

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	gocache_store "github.com/eko/gocache/store/go_cache/v4"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rouenrt/rouenrt/pkg/gtfsrt"
	"github.com/rs/zerolog/log"
)

const (
	pageMaxAge      = 30 * time.Second
	vehicleCacheTTL = 5 * time.Minute
	requestTimeout  = 30 * time.Second
)

var loadColours = map[string]gtfsrt.OccupancyStatus{
	"1cc88a": gtfsrt.OccupancyManySeatsAvailable,
	"f6c23e": gtfsrt.OccupancyFewSeatsAvailable,
	"e74a3b": gtfsrt.OccupancyFull,
}

var backgroundColourRegex = regexp.MustCompile(`background-color:#([a-z0-9]{6});`)

// Fetcher scrapes the passenger load map page of the vehicle telematics
// vendor. Page fetches are rate limited and every parsing miss falls back
// to the per-vehicle cache so a single bad scrape never blanks occupancy.
type Fetcher struct {
	url    string
	client *http.Client

	mutex       sync.Mutex
	page        []string
	lastFetchAt time.Time

	vehicleCache *cache.Cache[string]
}

// NewFetcher expects the page URL base64 encoded, as it is stored in the
// configuration document.
func NewFetcher(encodedURL string) (*Fetcher, error) {
	url, err := base64.StdEncoding.DecodeString(encodedURL)
	if err != nil {
		return nil, err
	}

	vehicleStore := gocache_store.NewGoCache(gocache.New(vehicleCacheTTL, 10*time.Minute))

	return &Fetcher{
		url:          string(url),
		client:       &http.Client{Timeout: requestTimeout},
		vehicleCache: cache.New[string](vehicleStore),
	}, nil
}

// VehicleOccupancy returns the current passenger load level for a vehicle,
// or false when none is known.
func (f *Fetcher) VehicleOccupancy(ctx context.Context, parcNumber string) (gtfsrt.OccupancyStatus, bool) {
	f.mutex.Lock()
	if time.Since(f.lastFetchAt) > pageMaxAge {
		f.lastFetchAt = time.Now()
		page, err := f.fetchPage(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Failed to fetch vehicle occupancies")
			f.page = nil
		} else {
			f.page = page
		}
	}
	page := f.page
	f.mutex.Unlock()

	status, found := f.parseVehicle(page, parcNumber)
	if !found {
		return f.cachedOccupancy(ctx, parcNumber)
	}

	f.vehicleCache.Set(ctx, parcNumber, string(status), store.WithExpiration(vehicleCacheTTL))

	return status, true
}

func (f *Fetcher) cachedOccupancy(ctx context.Context, parcNumber string) (gtfsrt.OccupancyStatus, bool) {
	cached, err := f.vehicleCache.Get(ctx, parcNumber)
	if err != nil || cached == "" {
		return "", false
	}

	return gtfsrt.OccupancyStatus(cached), true
}

func (f *Fetcher) fetchPage(ctx context.Context) ([]string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}

	response, err := f.client.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}

	document := string(body)
	startBoundary := strings.Index(document, `<script type="text/javascript">vehicles.`)
	endBoundary := strings.Index(document, "positions.addTo(myMap);</script>")
	if startBoundary == -1 || endBoundary == -1 || startBoundary > endBoundary {
		return nil, fmt.Errorf("occupancy page markers not found")
	}

	return regexp.MustCompile(`\r?\n`).Split(document[startBoundary:endBoundary], -1), nil
}

func (f *Fetcher) parseVehicle(page []string, parcNumber string) (gtfsrt.OccupancyStatus, bool) {
	vehicleLine := findLine(page, fmt.Sprintf("( %s )", parcNumber))
	if vehicleLine == "" {
		return "", false
	}

	idStart := strings.Index(vehicleLine, "('")
	idEnd := strings.Index(vehicleLine, "')")
	if idStart == -1 || idEnd == -1 || idStart+2 > idEnd {
		return "", false
	}
	markerID := vehicleLine[idStart+2 : idEnd]

	loadLine := findLine(page, fmt.Sprintf("%s_load", markerID))
	if loadLine == "" {
		return "", false
	}

	match := backgroundColourRegex.FindStringSubmatch(loadLine)
	if match == nil {
		return "", false
	}

	status, known := loadColours[match[1]]
	return status, known
}

func findLine(page []string, needle string) string {
	for _, line := range page {
		if strings.Contains(line, needle) {
			return line
		}
	}

	return ""
}
