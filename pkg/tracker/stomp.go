package tracker

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-stomp/stomp/v3"
	"github.com/rouenrt/rouenrt/pkg/stats"
	"github.com/rs/zerolog/log"
)

// TelemetryClient maintains the long-lived connection to the vehicle push
// bus. Subscriptions do not survive a reconnect and are always redone.
// Connection loss is never fatal: the client reconnects forever with a
// fixed delay.
type TelemetryClient struct {
	Address        string
	Lines          []string
	ReconnectDelay time.Duration

	Handler func(line string, vehicle MonitoredVehicle)
}

func (c *TelemetryClient) Run(stop <-chan struct{}) {
	for {
		err := c.session(stop)

		select {
		case <-stop:
			return
		default:
		}

		log.Error().Err(err).Msg("Vehicle bus connection lost, reconnecting")
		stats.IngressReconnects.Inc()
		time.Sleep(c.ReconnectDelay)
	}
}

func (c *TelemetryClient) session(stop <-chan struct{}) error {
	conn, err := stomp.Dial("tcp", c.Address,
		stomp.ConnOpt.HeartBeat(10*time.Second, 30*time.Second),
	)
	if err != nil {
		return err
	}
	defer conn.Disconnect()

	failures := make(chan error, 1)

	for _, line := range c.Lines {
		for _, direction := range []int{1, 2} {
			subscription, err := conn.Subscribe(fmt.Sprintf("#lineId:%s:%d", line, direction), stomp.AckAuto)
			if err != nil {
				return err
			}

			go c.consume(subscription, failures)
		}
	}

	log.Info().Int("lines", len(c.Lines)).Str("address", c.Address).Msg("Subscribed to vehicle bus channels")

	select {
	case err := <-failures:
		return err
	case <-stop:
		return nil
	}
}

func (c *TelemetryClient) consume(subscription *stomp.Subscription, failures chan<- error) {
	for message := range subscription.C {
		if message.Err != nil {
			select {
			case failures <- message.Err:
			default:
			}
			return
		}

		c.handleMessage(subscription.Destination(), message.Body)
	}

	select {
	case failures <- fmt.Errorf("subscription %s closed", subscription.Destination()):
	default:
	}
}

// handleMessage parses and dispatches one push. Failures here are
// per-message and must never take the connection down.
func (c *TelemetryClient) handleMessage(destination string, body []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Vehicle handler panicked")
		}
	}()

	var vehicle MonitoredVehicle
	if err := json.Unmarshal(body, &vehicle); err != nil {
		log.Error().Err(err).Str("destination", destination).Msg("Failed to parse vehicle push payload")
		stats.TelemetryEvents.WithLabelValues("unparseable").Inc()
		return
	}

	c.Handler(lineFromDestination(destination), vehicle)
}

// lineFromDestination recovers the line identifier from a channel name of
// the form "#lineId:<line>:<direction>".
func lineFromDestination(destination string) string {
	parts := strings.Split(destination, ":")
	if len(parts) < 2 {
		return destination
	}

	return parts[1]
}
