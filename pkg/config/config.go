package config

import (
	_ "embed"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed defaultconfig.yaml
var defaultConfig []byte

type Config struct {
	Feeds FeedsConfig `yaml:"feeds" validate:"required"`

	MonitoredLines []string `yaml:"monitored_lines" validate:"min=1"`

	// Headsigns that mark a dead run to or from a depot. A vehicle
	// announcing one of these never produces a trip update.
	DepotDestinations []string `yaml:"depot_destinations"`

	// Control dataset keyed by the announced line number, used to decide
	// whether a resolved trip can be trusted.
	Lines map[string]LineData `yaml:"lines"`
}

type FeedsConfig struct {
	GTFS string `yaml:"gtfs" validate:"required,url"`
	Hub  string `yaml:"hub" validate:"required,url"`

	VehicleBus string `yaml:"vehicle_bus" validate:"required"`

	BackupVehiclePositions  string `yaml:"backup_vehicle_positions" validate:"required,url"`
	BackupTripUpdates       string `yaml:"backup_trip_updates" validate:"required,url"`
	CurrentVehiclePositions string `yaml:"current_vehicle_positions" validate:"required,url"`

	StopList string `yaml:"stop_list" validate:"required,url"`

	// Base64 encoded URL of the occupancy map page
	OccupancyPage string `yaml:"occupancy_page"`
}

type LineData struct {
	Code         string   `yaml:"code"`
	Destinations []string `yaml:"destinations"`
}

func (l LineData) KnownDestination(destination string) bool {
	for _, known := range l.Destinations {
		if known == destination {
			return true
		}
	}

	return false
}

// Load reads the configuration document, either the embedded default or the
// file pointed at by ROUENRT_CONFIG.
func Load() (*Config, error) {
	document := defaultConfig

	if path := os.Getenv("ROUENRT_CONFIG"); path != "" {
		fileDocument, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		document = fileDocument
	}

	return Parse(document)
}

func Parse(document []byte) (*Config, error) {
	var loadedConfig Config
	if err := yaml.Unmarshal(document, &loadedConfig); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(loadedConfig); err != nil {
		return nil, err
	}

	return &loadedConfig, nil
}
