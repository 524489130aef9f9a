package producer

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/kr/pretty"
	"github.com/rouenrt/rouenrt/pkg/api"
	"github.com/rouenrt/rouenrt/pkg/config"
	"github.com/rouenrt/rouenrt/pkg/resources"
	"github.com/rouenrt/rouenrt/pkg/tracker"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

// defaultListen builds the listen target from the conventional PORT
// variable when one is set.
func defaultListen() string {
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}

	return ":3000"
}

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "producer",
		Usage: "GTFS-RT producer for the Rouen network",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the producer and publish the feeds",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Value: defaultListen(),
						Usage: "listen target for the web server",
					},
				},
				Action: func(c *cli.Context) error {
					producerConfig, err := config.Load()
					if err != nil {
						return err
					}

					feedProducer, err := NewProducer(producerConfig)
					if err != nil {
						return err
					}

					if err := feedProducer.Start(); err != nil {
						return err
					}

					go func() {
						if err := api.SetupServer(c.String("listen"), feedProducer.Store); err != nil {
							log.Fatal().Err(err).Msg("Web server failed")
						}
					}()

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					feedProducer.Stop()

					return nil
				},
			},
			{
				Name:  "test-trust",
				Usage: "evaluate the trust policy against a sample vehicle report",
				Action: func(c *cli.Context) error {
					producerConfig, err := config.Load()
					if err != nil {
						return err
					}

					vehicle := tracker.MonitoredVehicle{
						OperatorRef:    "TCAR",
						VehicleRef:     "TCAR:Vehicle:1:1234",
						VJourneyId:     480675,
						LineNumber:     "F1",
						Direction:      1,
						Latitude:       49.443232,
						Longitude:      1.099971,
						Bearing:        180,
						Destination:    "Plaine de la Ronce",
						RecordedAtTime: "2024-03-01T12:00:00",
					}

					trip := resources.Trip{
						TripID:      "12345-HLPA-2024",
						RouteID:     "40",
						DirectionID: 0,
					}

					var lineData *config.LineData
					if data, exists := producerConfig.Lines[vehicle.LineNumber]; exists {
						lineData = &data
					}

					suspicious := tracker.Suspicious(vehicle, trip, lineData, nil)

					pretty.Println(vehicle)
					pretty.Println(trip)
					pretty.Println("suspicious:", suspicious)

					return nil
				},
			},
		},
	}
}
