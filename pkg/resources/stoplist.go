package resources

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rouenrt/rouenrt/pkg/stats"
	"github.com/rs/zerolog/log"
)

// StopList maps the operator's internal stop point identifiers to GTFS stop
// codes. Refreshed periodically from the operator stop API, soft-failing.
type StopList struct {
	URL string

	mutex     sync.RWMutex
	stopCodes map[int]string
}

type stopListResponse struct {
	Data []struct {
		Id   int
		Code string
	}
}

func NewStopList(url string) *StopList {
	return &StopList{
		URL:       url,
		stopCodes: map[int]string{},
	}
}

func (s *StopList) StopCode(stopPointID int) (string, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	stopCode, exists := s.stopCodes[stopPointID]
	return stopCode, exists
}

func (s *StopList) Refresh() error {
	response, err := httpClient.Get(s.URL)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("stop list request returned status code %d", response.StatusCode)
	}

	var payload stopListResponse
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, stop := range payload.Data {
		s.stopCodes[stop.Id] = stop.Code
	}

	return nil
}

func (s *StopList) RunRefresher(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Refresh(); err != nil {
				log.Error().Err(err).Msg("Failed to refresh stop list")
				stats.ResourceRefreshes.WithLabelValues("stoplist", "error").Inc()
			} else {
				stats.ResourceRefreshes.WithLabelValues("stoplist", "success").Inc()
			}
		case <-stop:
			return
		}
	}
}
