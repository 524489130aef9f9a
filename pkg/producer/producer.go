package producer

import (
	"time"

	"github.com/rouenrt/rouenrt/pkg/config"
	"github.com/rouenrt/rouenrt/pkg/occupancy"
	"github.com/rouenrt/rouenrt/pkg/reconciler"
	"github.com/rouenrt/rouenrt/pkg/resources"
	"github.com/rouenrt/rouenrt/pkg/store"
	"github.com/rouenrt/rouenrt/pkg/tracker"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

const (
	// Store entries not observed for this long disappear from the feeds
	realtimeStaleTime = 600 * time.Second
	sweepInterval     = time.Minute

	reconcileInterval     = 10 * time.Second
	backupFreshnessWindow = 5 * time.Minute

	// Telemetry reports and backup records older than this are stale
	telemetryMaxAge = 10 * time.Minute

	resourceProbeInterval   = 5 * time.Minute
	resourceMaxAge          = time.Hour
	stopListRefreshInterval = 6 * time.Minute

	tripObservationRefreshInterval = 30 * time.Second
	tripObservationMaxAge          = time.Hour

	busReconnectDelay = 10 * time.Second

	networkTimezone = "Europe/Paris"
)

// Producer assembles and runs every moving part of the feed pipeline: the
// static resource refreshers, the telemetry tracker, the backup feed
// reconciler and the store sweeper.
type Producer struct {
	Config *config.Config
	Store  *store.Store

	resources  *resources.Manager
	stops      *resources.StopList
	finder     *resources.TripFinder
	occupancy  *occupancy.Fetcher
	reconciler *reconciler.Reconciler
	tracker    *tracker.Tracker
	telemetry  *tracker.TelemetryClient

	stop      chan struct{}
	waitGroup conc.WaitGroup
}

func NewProducer(producerConfig *config.Config) (*Producer, error) {
	timezone, err := time.LoadLocation(networkTimezone)
	if err != nil {
		return nil, err
	}

	occupancyFetcher, err := occupancy.NewFetcher(producerConfig.Feeds.OccupancyPage)
	if err != nil {
		return nil, err
	}

	realtimeStore := store.NewStore(realtimeStaleTime)

	resourceManager := &resources.Manager{
		GTFSFeedURL:    producerConfig.Feeds.GTFS,
		HubFeedURL:     producerConfig.Feeds.Hub,
		MaxSnapshotAge: resourceMaxAge,
	}
	stopList := resources.NewStopList(producerConfig.Feeds.StopList)
	tripFinder := resources.NewTripFinder(producerConfig.Feeds.CurrentVehiclePositions, tripObservationMaxAge)

	feedReconciler := &reconciler.Reconciler{
		Store:               realtimeStore,
		Resources:           resourceManager,
		Occupancy:           occupancyFetcher,
		VehiclePositionsURL: producerConfig.Feeds.BackupVehiclePositions,
		TripUpdatesURL:      producerConfig.Feeds.BackupTripUpdates,
		FreshnessWindow:     backupFreshnessWindow,
		TelemetryFreshness:  telemetryMaxAge,
	}

	vehicleTracker := &tracker.Tracker{
		Config:      producerConfig,
		Store:       realtimeStore,
		Resources:   resourceManager,
		Stops:       stopList,
		Finder:      tripFinder,
		Backup:      feedReconciler,
		Occupancy:   occupancyFetcher,
		MaxEventAge: telemetryMaxAge,
		Timezone:    timezone,
	}

	telemetryClient := &tracker.TelemetryClient{
		Address:        producerConfig.Feeds.VehicleBus,
		Lines:          producerConfig.MonitoredLines,
		ReconnectDelay: busReconnectDelay,
		Handler:        vehicleTracker.HandleVehicle,
	}

	return &Producer{
		Config: producerConfig,
		Store:  realtimeStore,

		resources:  resourceManager,
		stops:      stopList,
		finder:     tripFinder,
		occupancy:  occupancyFetcher,
		reconciler: feedReconciler,
		tracker:    vehicleTracker,
		telemetry:  telemetryClient,
	}, nil
}

// Start loads the static resources then launches the background loops.
// A missing schedule is fatal, everything else degrades gracefully.
func (p *Producer) Start() error {
	if err := p.resources.LoadInitial(); err != nil {
		return err
	}
	if err := p.stops.Refresh(); err != nil {
		log.Error().Err(err).Msg("Failed to load the stop list, stop references will be missing")
	}
	if err := p.finder.Refresh(); err != nil {
		log.Error().Err(err).Msg("Failed to load trip observations")
	}

	p.stop = make(chan struct{})

	p.waitGroup.Go(func() { p.resources.RunRefresher(resourceProbeInterval, p.stop) })
	p.waitGroup.Go(func() { p.stops.RunRefresher(stopListRefreshInterval, p.stop) })
	p.waitGroup.Go(func() { p.finder.RunRefresher(tripObservationRefreshInterval, p.stop) })
	p.waitGroup.Go(func() { p.Store.RunSweeper(sweepInterval, p.stop) })
	p.waitGroup.Go(func() { p.reconciler.Run(reconcileInterval, p.stop) })
	p.waitGroup.Go(func() { p.telemetry.Run(p.stop) })

	log.Info().
		Int("lines", len(p.Config.MonitoredLines)).
		Msg("Producer started")

	return nil
}

func (p *Producer) Stop() {
	close(p.stop)
	p.waitGroup.Wait()
}
