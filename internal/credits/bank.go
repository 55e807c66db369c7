// Package credits implements a stateless credit balance that lives entirely in
// a signed, client-held token.
//
// The server keeps no copy of any balance. Each request reads the token from
// the client's storage slot (normally a cookie), verifies its HMAC, and writes
// a freshly signed token after every change. A missing or invalid token reads
// as the configured initial balance.
package credits

import (
	"errors"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultCookieName is the cookie that carries the token.
	DefaultCookieName = "credits_token"

	// DefaultInitialCredits is granted to clients without a valid token.
	DefaultInitialCredits int64 = 10

	// DefaultMaxAge is how long the client keeps a token.
	DefaultMaxAge = 30 * 24 * time.Hour

	// DevSecret signs tokens when no secret is configured outside production.
	// Anyone who knows it can forge balances.
	DevSecret = "dev-secret"
)

var (
	// ErrInsufficientCredits is returned by Spend when the balance is below the cost.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrMissingSecret is returned by NewBank in production without a secret.
	ErrMissingSecret = errors.New("credits secret is not configured")

	// ErrConflict is returned when a swap-capable slot keeps changing underneath an update.
	ErrConflict = errors.New("credit balance changed concurrently")
)

// Config holds everything the ledger needs. It is injected, never read from
// the environment.
type Config struct {
	// Secret signs and verifies tokens.
	Secret string
	// Production disables the development secret fallback and dev top-ups.
	Production bool
	// InitialCredits is the balance of a client with no valid token. Used as given.
	InitialCredits int64
	// Costs is the price list.
	Costs Costs
	// TopupEnabled allows top-ups even in production.
	TopupEnabled bool
	// CookieName defaults to DefaultCookieName.
	CookieName string
	// MaxAge defaults to DefaultMaxAge.
	MaxAge time.Duration
}

// Bank is the process-wide factory for per-client ledgers.
type Bank struct {
	cfg    Config
	codec  *Codec
	logger *slog.Logger
	now    func() time.Time
}

// NewBank validates cfg and creates a Bank.
func NewBank(cfg Config, logger *slog.Logger) (*Bank, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Secret == "" {
		if cfg.Production {
			return nil, ErrMissingSecret
		}
		logger.Warn("no credits secret configured, signing with the development secret")
		cfg.Secret = DevSecret
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	cfg.InitialCredits = clampInt(cfg.InitialCredits)
	cfg.Costs = cfg.Costs.normalized()

	return &Bank{
		cfg:    cfg,
		codec:  NewCodec(NewSigner([]byte(cfg.Secret))),
		logger: logger,
		now:    time.Now,
	}, nil
}

// Ledger binds the bank to one client's storage slot.
func (b *Bank) Ledger(slot Slot) *Ledger {
	return &Ledger{bank: b, slot: slot}
}

// LedgerFor binds the bank to the request's cookie.
func (b *Bank) LedgerFor(w http.ResponseWriter, r *http.Request) *Ledger {
	return b.Ledger(NewCookieSlot(w, r))
}

// Codec returns the token codec.
func (b *Bank) Codec() *Codec {
	return b.codec
}

// Costs returns the price list.
func (b *Bank) Costs() Costs {
	return b.cfg.Costs
}

// InitialCredits returns the balance granted to clients without a token.
func (b *Bank) InitialCredits() int64 {
	return b.cfg.InitialCredits
}

// TopupAllowed reports whether unauthenticated top-ups are permitted.
func (b *Bank) TopupAllowed() bool {
	return b.cfg.TopupEnabled || !b.cfg.Production
}

// CookieName returns the name of the storage slot entry.
func (b *Bank) CookieName() string {
	return b.cfg.CookieName
}

func (b *Bank) slotOptions() SlotOptions {
	return SlotOptions{
		HTTPOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   b.cfg.MaxAge,
	}
}
