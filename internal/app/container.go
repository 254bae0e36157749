package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	licensingApp "github.com/felixgeelhaar/tally/internal/licensing/application"
	"github.com/felixgeelhaar/tally/internal/licensing/application/subscribers"
	"github.com/felixgeelhaar/tally/internal/licensing/domain"
	"github.com/felixgeelhaar/tally/internal/licensing/infrastructure/billing"
	"github.com/felixgeelhaar/tally/internal/licensing/infrastructure/billing/amazon"
	"github.com/felixgeelhaar/tally/internal/licensing/infrastructure/billing/play"
	licensingCrypto "github.com/felixgeelhaar/tally/internal/licensing/infrastructure/crypto"
	"github.com/felixgeelhaar/tally/internal/licensing/infrastructure/diagnostics"
	licensingPersistence "github.com/felixgeelhaar/tally/internal/licensing/infrastructure/persistence"
	"github.com/felixgeelhaar/tally/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/tally/pkg/config"
	"github.com/felixgeelhaar/tally/pkg/observability"
)

const recentDiagnostics = 50

// Store namespaces sharing one backend.
const (
	namespaceLicence = "licence"
	namespacePrices  = "prices"
	namespaceLedger  = "ledger"
)

var _ subscribers.PurchaseRecorder = (*billing.Ledger)(nil)

// Container holds all application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger
	Flavor domain.Flavor

	// Observability
	Metrics     *observability.PrometheusMetrics
	Health      *observability.HealthRegistry
	Diagnostics *diagnostics.Reporter

	// Storage
	Store domain.KeyValueStore

	// Messaging. Bus is set when no RabbitMQ URL is configured.
	EventPublisher eventbus.Publisher
	Bus            *eventbus.InProcessEventBus

	// Licensing
	StatusStore *licensingApp.StatusStore
	Reconciler  *licensingApp.Reconciler
	PriceCache  *licensingApp.PriceCache
	Handler     *licensingApp.Handler

	// Billing is nil for flavors without in-app purchase and when no vendor
	// credentials are configured; Session is nil then too.
	Billing    domain.BillingClient
	Ledger     *billing.Ledger
	Session    *licensingApp.Session
	Subscriber *subscribers.BillingSubscriber
}

// NewContainer wires every component from cfg.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	flavor, err := domain.ParseFlavor(cfg.Flavor)
	if err != nil {
		return nil, err
	}

	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Flavor:  flavor,
		Metrics: observability.NewPrometheusMetrics(),
		Health:  observability.NewHealthRegistry(),
	}
	c.Diagnostics = diagnostics.NewReporter(logger, c.Metrics, recentDiagnostics)

	store, err := licensingPersistence.NewStore(ctx, storeConfig(cfg), c.Diagnostics)
	if err != nil {
		return nil, fmt.Errorf("failed to open licence store: %w", err)
	}
	c.Store = store
	c.registerStoreHealth()
	logger.Info("licence store opened", "driver", cfg.StoreDriver)

	if err := c.initMessaging(); err != nil {
		c.Close()
		return nil, err
	}

	c.StatusStore = licensingApp.NewStatusStore(licensingPersistence.Namespaced(store, namespaceLicence), c.Diagnostics)
	c.Reconciler = licensingApp.NewReconciler(c.StatusStore, c.Diagnostics, logger,
		licensingApp.WithMetrics(c.Metrics))
	c.PriceCache = licensingApp.NewPriceCache(licensingPersistence.Namespaced(store, namespacePrices), c.Diagnostics, logger)
	c.Handler = licensingApp.NewHandler(licensingApp.HandlerConfig{
		Flavor:       flavor,
		UnlockSwitch: cfg.UnlockSwitch,
	}, c.StatusStore, c.Reconciler, c.PriceCache, c.EventPublisher, logger)

	if cfg.LicencePublicKey != "" {
		verifier, err := newVerifier(cfg.LicencePublicKey)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to load licence public key: %w", err)
		}
		c.Handler.SetKeyVerifier(verifier)
	}

	if err := c.initBilling(ctx); err != nil {
		c.Close()
		return nil, err
	}

	return c, nil
}

func storeConfig(cfg *config.Config) licensingPersistence.Config {
	return licensingPersistence.Config{
		Driver:      cfg.StoreDriver,
		FilePath:    cfg.StoreFilePath,
		SQLitePath:  cfg.SQLitePath,
		DatabaseURL: cfg.DatabaseURL,
		RedisURL:    cfg.RedisURL,
		WebDAV: licensingPersistence.WebDAVConfig{
			URL:      cfg.WebDAVURL,
			Username: cfg.WebDAVUsername,
			Password: cfg.WebDAVPassword,
			Path:     cfg.WebDAVPath,
		},
		ObfuscationKey: cfg.ObfuscationKey,
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (c *Container) registerStoreHealth() {
	ping := func(context.Context) error { return nil }
	if p, ok := c.Store.(pinger); ok {
		ping = p.Ping
	}
	c.Health.Register("licence_store", observability.PingHealthChecker("licence store", ping))
}

func (c *Container) initMessaging() error {
	cfg := c.Config
	if !cfg.UsesMessageBus() {
		c.Bus = eventbus.NewInProcessEventBus(c.Logger)
		c.EventPublisher = eventbus.NewMeteredPublisher(c.Bus, c.Metrics)
		return nil
	}

	publisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.BillingExchange, c.Logger)
	if err != nil {
		if !cfg.IsDevelopment() {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		c.Logger.Warn("RabbitMQ not available, using noop publisher", "error", err)
		c.EventPublisher = eventbus.NewNoopPublisher(c.Logger)
		return nil
	}
	c.EventPublisher = eventbus.NewMeteredPublisher(publisher, c.Metrics)
	c.Health.Register("rabbitmq", observability.OptionalHealthChecker("rabbitmq", func(context.Context) error {
		if publisher.IsClosed() {
			return errors.New("connection closed")
		}
		return nil
	}))
	return nil
}

func (c *Container) initBilling(ctx context.Context) error {
	if !c.Flavor.UsesInAppPurchase() {
		return nil
	}

	c.Ledger = billing.NewLedger(licensingPersistence.Namespaced(c.Store, namespaceLedger))
	client, err := c.newBillingClient(ctx)
	if errors.Is(err, billing.ErrNoCredentials) {
		c.Logger.Warn("no vendor credentials configured, purchases are unavailable", "flavor", c.Flavor)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create %s billing client: %w", c.Flavor, err)
	}

	c.Billing = client
	c.Session = licensingApp.NewSession(client, c.Handler, c.Logger, licensingApp.SessionConfig{
		Query: true,
		Skus:  c.Flavor.AllSkus(),
	})
	c.Subscriber = subscribers.NewBillingSubscriber(c.Session, c.Handler, c.Ledger, c.Logger, c.Metrics)
	if c.Bus != nil {
		c.Bus.RegisterConsumer(c.Subscriber)
	}
	return nil
}

func (c *Container) transportConfig(name string) billing.TransportConfig {
	tc := billing.DefaultTransportConfig(name)
	tc.RateLimit = c.Config.VendorRateLimit
	tc.Burst = c.Config.VendorRateBurst
	tc.Timeout = c.Config.VendorTimeout
	if c.Config.BreakerMaxFailures > 0 {
		tc.MaxFailures = uint32(c.Config.BreakerMaxFailures) // #nosec G115 - checked positive
	}
	tc.OpenTimeout = c.Config.BreakerTimeout
	return tc
}

func (c *Container) newBillingClient(ctx context.Context) (domain.BillingClient, error) {
	cfg := c.Config
	switch c.Flavor {
	case domain.FlavorPlay:
		tokens, err := play.TokenSource(ctx, play.Credentials{
			AccessToken:         cfg.PlayAccessToken,
			ServiceAccountEmail: cfg.PlayServiceAccountEmail,
			KeyFile:             cfg.PlayServiceAccountKeyFile,
		})
		if err != nil {
			return nil, err
		}
		return play.NewClient(play.Config{
			PackageName: cfg.PlayPackageName,
			BaseURL:     cfg.PlayAPIURL,
			Region:      cfg.PlayRegion,
			Transport:   c.transportConfig("play"),
		}, tokens, c.Ledger, c.EventPublisher, c.Logger, c.Metrics)

	case domain.FlavorAmazon:
		return amazon.NewClient(amazon.Config{
			BaseURL:      cfg.AmazonRVSURL,
			SharedSecret: cfg.AmazonSharedSecret,
			UserID:       cfg.AmazonUserID,
			Transport:    c.transportConfig("amazon"),
		}, c.Ledger, c.EventPublisher, c.Logger, c.Metrics)

	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrPurchaseUnsupported, c.Flavor)
	}
}

type reloader interface {
	Reload()
}

// ReloadStore drops cached backend state so that changes written by other
// installations are seen. Backends without a cache ignore it.
func (c *Container) ReloadStore() {
	if r, ok := c.Store.(reloader); ok {
		r.Reload()
	}
}

// newVerifier accepts a PEM file path or a base64 encoded key.
func newVerifier(key string) (*licensingCrypto.Verifier, error) {
	if _, err := os.Stat(key); err == nil {
		return licensingCrypto.NewVerifierFromFile(key)
	}
	return licensingCrypto.NewVerifierFromBase64(key)
}

// Close releases all resources.
func (c *Container) Close() {
	if c.Session != nil {
		if err := c.Session.Close(); err != nil {
			c.Logger.Warn("error closing billing session", "error", err)
		}
	}

	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			c.Logger.Warn("error closing event publisher", "error", err)
		}
	}

	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			c.Logger.Warn("error closing licence store", "error", err)
		} else {
			c.Logger.Info("licence store closed")
		}
	}
}
