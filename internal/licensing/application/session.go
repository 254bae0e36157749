package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/felixgeelhaar/tally/internal/licensing/domain"
)

// SessionState is the lifecycle state of a billing session.
type SessionState int

const (
	// SessionUninitialized means no vendor connection exists.
	SessionUninitialized SessionState = iota
	// SessionQuerying means the connection or the initial queries are in flight.
	SessionQuerying
	// SessionReady means purchases may be launched.
	SessionReady
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case SessionQuerying:
		return "querying"
	case SessionReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// SessionConfig configures a billing session.
type SessionConfig struct {
	// Query makes the session fetch product details after connecting.
	Query bool
	// Skus are the products whose details are fetched.
	Skus []string
	// Setup is told about setup completion and fatal failures. Optional.
	Setup domain.SetupListener
}

// Session drives one vendor connection through
// Uninitialized -> Querying -> Ready and delivers vendor results to a
// listener. Vendor callbacks are serialized by the session.
type Session struct {
	client    domain.BillingClient
	listener  domain.BillingUpdatesListener
	cfg       SessionConfig
	logger    *slog.Logger
	mu        sync.Mutex
	state     SessionState
	connected bool
}

// NewSession creates an unstarted session.
func NewSession(client domain.BillingClient, listener domain.BillingUpdatesListener, logger *slog.Logger, cfg SessionConfig) *Session {
	return &Session{
		client:   client,
		listener: listener,
		cfg:      cfg,
		logger:   logger,
	}
}

// State returns the current state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start connects, retrying once, then queries purchases and optionally
// product details. On success the session is Ready.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = SessionQuerying
	if err := s.connectLocked(ctx, 2); err != nil {
		return err
	}

	purchases, err := s.client.QueryPurchases(ctx)
	if err != nil {
		s.logger.Warn("query purchases failed", "error", err)
		if errors.Is(err, domain.ErrBillingUnavailable) {
			s.connected = false
		}
	} else if err := s.handlePurchasesLocked(ctx, purchases, false); err != nil {
		s.logger.Warn("handling purchases failed", "error", err)
	}

	if s.cfg.Query && len(s.cfg.Skus) > 0 {
		details, err := s.client.QueryProductDetails(ctx, s.cfg.Skus)
		if err != nil {
			s.logger.Warn("product details response", "error", err)
		} else if err := s.listener.OnProductDetails(ctx, details); err != nil {
			s.logger.Warn("storing product details failed", "error", err)
		}
	}

	s.state = SessionReady
	if s.cfg.Setup != nil {
		s.cfg.Setup.OnBillingSetupFinished(ctx)
	}
	return nil
}

// ConnectionLost moves a ready session back to Querying and makes one
// reconnect attempt.
func (s *Session) ConnectionLost(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == SessionUninitialized {
		return nil
	}
	s.logger.Warn("billing service disconnected")
	s.connected = false
	s.state = SessionQuerying
	if err := s.connectLocked(ctx, 1); err != nil {
		return err
	}
	s.state = SessionReady
	return nil
}

// Execute runs fn against the vendor client, reconnecting once first when
// the connection was lost.
func (s *Session) Execute(ctx context.Context, fn func(ctx context.Context, client domain.BillingClient) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == SessionUninitialized {
		return domain.ErrSessionNotReady
	}
	if !s.connected {
		s.state = SessionQuerying
		if err := s.connectLocked(ctx, 1); err != nil {
			return err
		}
		s.state = SessionReady
	}
	err := fn(ctx, s.client)
	if errors.Is(err, domain.ErrBillingUnavailable) {
		s.connected = false
	}
	return err
}

// DeliverPurchases passes purchase updates from a purchase flow to the
// listener and acknowledges them when asked to.
func (s *Session) DeliverPurchases(ctx context.Context, purchases []domain.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handlePurchasesLocked(ctx, purchases, true)
}

// DeliverInventory passes a purchase list that did not come from a purchase
// flow, e.g. one the device pushed after restoring purchases.
func (s *Session) DeliverInventory(ctx context.Context, purchases []domain.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handlePurchasesLocked(ctx, purchases, false)
}

// DeliverPurchaseCanceled reports an aborted purchase flow.
func (s *Session) DeliverPurchaseCanceled(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Info("user cancelled the purchase flow")
	s.listener.OnPurchaseCanceled(ctx)
}

// DeliverPurchaseFailed reports a failed purchase flow.
func (s *Session) DeliverPurchaseFailed(ctx context.Context, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Warn("purchase flow failed", "error", err)
	s.listener.OnPurchaseFailed(ctx, err)
}

// Close ends the vendor connection.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SessionUninitialized
	s.connected = false
	return s.client.Close()
}

func (s *Session) connectLocked(ctx context.Context, attempts int) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = s.client.Connect(ctx); err == nil {
			s.connected = true
			return nil
		}
		s.logger.Warn("billing connection failed", "attempt", i+1, "error", err)
		if ctx.Err() != nil {
			break
		}
	}
	s.state = SessionUninitialized
	s.connected = false
	setupErr := fmt.Errorf("%w: %w", domain.ErrBillingSetupFailed, err)
	if s.cfg.Setup != nil {
		s.cfg.Setup.OnBillingSetupFailed(ctx, setupErr)
	}
	return setupErr
}

func (s *Session) handlePurchasesLocked(ctx context.Context, purchases []domain.Purchase, newPurchase bool) error {
	acknowledge, err := s.listener.OnPurchasesUpdated(ctx, purchases, newPurchase)
	if err != nil {
		return err
	}
	if !acknowledge {
		return nil
	}
	for _, p := range purchases {
		if !p.NeedsAcknowledgement() {
			continue
		}
		if err := s.client.Acknowledge(ctx, p); err != nil {
			s.logger.Warn("acknowledge failed", "sku", p.SKU, "error", err)
			continue
		}
		s.logger.Info("purchase acknowledged", "sku", p.SKU)
	}
	return nil
}
