package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cristianemoyano/swarm-autoscaler/internal/collector"
	"github.com/cristianemoyano/swarm-autoscaler/internal/decision"
	"github.com/cristianemoyano/swarm-autoscaler/internal/events"
	"github.com/cristianemoyano/swarm-autoscaler/internal/logger"
	"github.com/cristianemoyano/swarm-autoscaler/internal/registry"
	"github.com/cristianemoyano/swarm-autoscaler/internal/scaler"
	"github.com/cristianemoyano/swarm-autoscaler/internal/swarm"
	"github.com/cristianemoyano/swarm-autoscaler/pkg/config"
	"github.com/cristianemoyano/swarm-autoscaler/pkg/models"
)

// Orchestrator owns the two loops of the autoscaler: the registry
// refresh that keeps the service snapshot current, and the evaluation
// tick that collects metrics and scales. Both are driven from one
// context so shutdown stops everything together.
type Orchestrator struct {
	config      *config.Config
	docker      *swarm.Client
	registry    *registry.Registry
	engine      *decision.Engine
	collector   collector.Collector
	eventBus    *events.EventBus
	eventLogger *events.EventLogger
	amqpSink    *events.AMQPSink
	history     events.HistoryStore

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg *config.Config, history events.HistoryStore) (*Orchestrator, error) {
	docker, err := swarm.NewClient(swarm.Config{
		Host:       cfg.Docker.Host,
		APIVersion: cfg.Docker.APIVersion,
		Timeout:    cfg.Docker.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}

	bufferSize := cfg.Events.BufferSize
	if bufferSize <= 0 {
		bufferSize = 100
	}
	eventBus := events.NewEventBus(bufferSize)
	publisher := events.NewPublisher(eventBus)
	eventLogger := events.NewEventLogger(history, eventBus.SubscribeAll())

	var amqpSink *events.AMQPSink
	if cfg.Events.AMQPURL != "" {
		amqpSink = events.NewAMQPSink(cfg.Events.AMQPURL, cfg.Events.Exchange, eventBus.SubscribeAll())
	}

	reg := registry.New(docker, registry.NewCache(), publisher, registry.Config{
		RefreshInterval: cfg.Registry.RefreshInterval,
		Timeout:         cfg.Docker.Timeout,
		Defaults: registry.Defaults{
			PercentageMin: cfg.Autoscaler.PercentageMin,
			PercentageMax: cfg.Autoscaler.PercentageMax,
		},
	})

	col := buildCollector(cfg, docker)
	engine := decision.NewEngine(reg, docker, col, scaler.NewSwarmScaler(docker), publisher, decision.Config{
		DryRun:      cfg.Autoscaler.DryRun,
		Concurrency: cfg.Autoscaler.Workers,
	})

	ctx, cancel := context.WithCancel(context.Background())

	return &Orchestrator{
		config:      cfg,
		docker:      docker,
		registry:    reg,
		engine:      engine,
		collector:   col,
		eventBus:    eventBus,
		eventLogger: eventLogger,
		amqpSink:    amqpSink,
		history:     history,
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

func buildCollector(cfg *config.Config, docker *swarm.Client) collector.Collector {
	var source collector.Collector
	switch cfg.Metrics.Source {
	case config.SourceCadvisor:
		source = collector.NewCadvisorCollector(collector.CadvisorCollectorConfig{
			Endpoint: cfg.Metrics.CadvisorURL,
			Timeout:  cfg.Metrics.Timeout,
		})
	default:
		source = collector.NewDockerCollector(collector.DockerCollectorConfig{
			DiscoveryDNS:  cfg.Metrics.DiscoveryDNS,
			DiscoveryPort: cfg.Metrics.DiscoveryPort,
			Timeout:       cfg.Metrics.Timeout,
			HostsTTL:      cfg.Registry.RefreshInterval / 2,
		})
	}

	return collector.NewResilientCollector(collector.ResilientCollectorConfig{
		Collector:   source,
		MaxFailures: cfg.Metrics.Breaker.MaxFailures,
		Timeout:     cfg.Metrics.Breaker.Timeout,
	})
}

func (o *Orchestrator) Start() error {
	logger.Info("Orchestrator starting")

	if err := o.docker.Ping(o.ctx); err != nil {
		return fmt.Errorf("docker daemon unreachable: %w", err)
	}

	o.eventLogger.Start()
	if o.amqpSink != nil {
		o.amqpSink.Start()
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.registry.Run(o.ctx)
	}()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.tickLoop()
	}()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.healthLoop()
	}()

	return nil
}

// tickLoop serializes evaluation ticks: a slow tick delays the next one
// rather than overlapping it.
func (o *Orchestrator) tickLoop() {
	interval := o.config.Autoscaler.Interval
	logger.Infof("Evaluation loop running every %s", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-o.ctx.Done():
			return
		case <-ticker.C:
			o.engine.Tick(o.ctx)
		}
	}
}

func (o *Orchestrator) healthLoop() {
	interval := o.config.Registry.HealthInterval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	publisher := events.NewPublisher(o.eventBus)
	for {
		select {
		case <-o.ctx.Done():
			return
		case <-ticker.C:
			status := map[string]interface{}{
				"registry": o.registry.Health(),
				"source":   "ok",
			}
			if err := o.collector.HealthCheck(o.ctx); err != nil {
				status["source"] = err.Error()
			}
			publisher.HealthCheck(status)
		}
	}
}

func (o *Orchestrator) Stop() {
	logger.Info("Orchestrator stopping")

	o.cancel()
	o.wg.Wait()

	o.eventBus.Close()
	o.eventLogger.Stop()
	if o.amqpSink != nil {
		o.amqpSink.Stop()
	}

	o.collector.Close()
	o.docker.Close()

	logger.Info("Orchestrator stopped")
}

func (o *Orchestrator) Registry() *registry.Registry {
	return o.registry
}

func (o *Orchestrator) Docker() *swarm.Client {
	return o.docker
}

func (o *Orchestrator) History() events.HistoryStore {
	return o.history
}

// TriggerRefresh forces a registry rebuild outside the timer, used by
// the refresh endpoint.
func (o *Orchestrator) TriggerRefresh(ctx context.Context) {
	o.registry.Refresh(ctx)
}

func (o *Orchestrator) SubscribeEvents(eventType models.EventType) <-chan *models.Event {
	return o.eventBus.Subscribe(eventType)
}

func (o *Orchestrator) SubscribeAllEvents() <-chan *models.Event {
	return o.eventBus.SubscribeAll()
}
