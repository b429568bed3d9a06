package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-zeromq/zmq4"
	"github.com/rs/zerolog"

	"github.com/chirpnet/chirp/pkg/config"
	"github.com/chirpnet/chirp/pkg/log"
)

// Broker is the front-door process: it load-balances client requests
// across the registered app servers and hosts the cluster control plane
// (membership, election, liveness, clock-sync broadcast and notification
// fan-out).
type Broker struct {
	cfg      *config.Config
	logger   zerolog.Logger
	registry *Registry

	frontend  zmq4.Socket // ROUTER, clients
	backend   zmq4.Socket // DEALER, app servers
	control   zmq4.Socket // REP, control channel
	pub       zmq4.Socket // PUB, notification bus
	pull      zmq4.Socket // PULL, heartbeat ingress
	publisher *Publisher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a broker for the given configuration.
func New(cfg *config.Config) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		cfg:      cfg,
		logger:   log.WithComponent("broker"),
		registry: NewRegistry(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Registry exposes the cluster state, mainly for tests and diagnostics.
func (b *Broker) Registry() *Registry {
	return b.registry
}

// Start binds all five sockets and launches the broker loops: the two
// forwarding directions, the control channel, heartbeat ingestion, the
// liveness sweep and the bus publisher.
func (b *Broker) Start() error {
	eps := b.cfg.Endpoints

	b.frontend = zmq4.NewRouter(b.ctx)
	if err := b.frontend.Listen(eps.Frontend); err != nil {
		return fmt.Errorf("binding frontend on %s: %w", eps.Frontend, err)
	}

	b.backend = zmq4.NewDealer(b.ctx)
	if err := b.backend.Listen(eps.Backend); err != nil {
		return fmt.Errorf("binding backend on %s: %w", eps.Backend, err)
	}

	b.control = zmq4.NewRep(b.ctx)
	if err := b.control.Listen(eps.Control); err != nil {
		return fmt.Errorf("binding control on %s: %w", eps.Control, err)
	}

	b.pub = zmq4.NewPub(b.ctx)
	if err := b.pub.Listen(eps.Notify); err != nil {
		return fmt.Errorf("binding notification bus on %s: %w", eps.Notify, err)
	}

	b.pull = zmq4.NewPull(b.ctx)
	if err := b.pull.Listen(eps.Heartbeat); err != nil {
		return fmt.Errorf("binding heartbeat ingress on %s: %w", eps.Heartbeat, err)
	}

	b.publisher = NewPublisher(b.pub)
	b.publisher.Start()

	b.wg.Add(5)
	go b.forward(b.frontend, b.backend, "frontend->backend")
	go b.forward(b.backend, b.frontend, "backend->frontend")
	go b.controlLoop()
	go b.heartbeatLoop()
	go b.sweepLoop()

	b.logger.Info().
		Str("frontend", eps.Frontend).
		Str("backend", eps.Backend).
		Str("control", eps.Control).
		Str("notify", eps.Notify).
		Str("heartbeat", eps.Heartbeat).
		Msg("Broker started")
	return nil
}

// Stop shuts down all loops and closes the sockets.
func (b *Broker) Stop() {
	b.cancel()
	for _, sock := range []zmq4.Socket{b.frontend, b.backend, b.control, b.pull} {
		if sock != nil {
			_ = sock.Close()
		}
	}
	b.wg.Wait()
	if b.publisher != nil {
		b.publisher.Stop()
	}
	if b.pub != nil {
		_ = b.pub.Close()
	}
	b.logger.Info().Msg("Broker stopped")
}

// forward moves frames verbatim from src to dst. The ROUTER identity
// envelope stays intact, so replies reach the client that issued the
// request and the DEALER side round-robins across attached servers.
func (b *Broker) forward(src, dst zmq4.Socket, direction string) {
	defer b.wg.Done()

	for {
		msg, err := src.Recv()
		if err != nil {
			if b.ctx.Err() != nil {
				return
			}
			b.logger.Error().Err(err).Str("direction", direction).Msg("Failed to receive frame")
			continue
		}
		if err := dst.Send(msg); err != nil {
			if b.ctx.Err() != nil {
				return
			}
			b.logger.Error().Err(err).Str("direction", direction).Msg("Failed to forward frame")
		}
	}
}
