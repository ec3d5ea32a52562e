package kleio

import (
	"log/slog"

	"github.com/epistimio/kleio/internal/adapters"
	"github.com/epistimio/kleio/internal/config"
	"github.com/epistimio/kleio/internal/logging"
	"github.com/epistimio/kleio/pkg/consumer"
	"github.com/epistimio/kleio/pkg/observability"
	"github.com/epistimio/kleio/pkg/ports"
	"github.com/epistimio/kleio/pkg/producer"
)

// Version is the Kleiō release version.
var Version = "0.3.0"

// Session is the high-level entry point for embedding Kleiō: a connected
// store with a producer and consumer wired to it.
type Session struct {
	Store    ports.Store
	Locker   ports.DistributedLocker
	Producer *producer.Producer
	Consumer *consumer.Consumer
	Config   config.Config
	Logger   *slog.Logger
}

// Option configures a Session.
type Option func(*options)

type options struct {
	configFile string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// WithConfigFile loads an explicit configuration file on top of the
// default layers.
func WithConfigFile(path string) Option {
	return func(o *options) { o.configFile = path }
}

// WithLogger injects the application logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.logger = log }
}

// WithMetrics injects a metric set shared with the host application.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Open resolves the configuration and connects the selected backend.
func Open(opts ...Option) (*Session, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}

	cfg, err := config.Resolve(o.configFile)
	if err != nil {
		return nil, err
	}
	store, locker, err := adapters.Open(cfg)
	if err != nil {
		return nil, err
	}

	return &Session{
		Store:    store,
		Locker:   locker,
		Producer: producer.New(store, locker, cfg, o.logger, o.metrics),
		Consumer: consumer.New(store, cfg, o.logger, o.metrics),
		Config:   cfg,
		Logger:   o.logger,
	}, nil
}

// Close releases the backend connection.
func (s *Session) Close() error {
	return s.Store.Close()
}
