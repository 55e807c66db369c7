package credits

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

// SlotOptions are the retention and visibility attributes applied to a write.
type SlotOptions struct {
	HTTPOnly bool
	Secure   bool
	SameSite http.SameSite
	Path     string
	MaxAge   time.Duration
}

// Slot is a client-side storage cell holding the current token.
// The ledger treats its contents as untrusted.
type Slot interface {
	// Get returns the stored value, if any.
	Get(name string) (string, bool)

	// Set replaces the stored value.
	Set(name, value string, opts SlotOptions) error
}

// CookieSlot stores tokens in an HTTP cookie for a single request.
// Writes are remembered so later reads in the same request see them.
type CookieSlot struct {
	w http.ResponseWriter
	r *http.Request

	mu      sync.Mutex
	written map[string]string
}

// NewCookieSlot binds a slot to a request/response pair.
func NewCookieSlot(w http.ResponseWriter, r *http.Request) *CookieSlot {
	return &CookieSlot{w: w, r: r, written: make(map[string]string)}
}

// Get returns the cookie value written during this request, or the one the
// client sent.
func (s *CookieSlot) Get(name string) (string, bool) {
	s.mu.Lock()
	v, ok := s.written[name]
	s.mu.Unlock()
	if ok {
		return v, true
	}

	c, err := s.r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// Set writes a Set-Cookie header.
func (s *CookieSlot) Set(name, value string, opts SlotOptions) error {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     opts.Path,
		MaxAge:   int(opts.MaxAge / time.Second),
		HttpOnly: opts.HTTPOnly,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	}
	if err := c.Valid(); err != nil {
		return fmt.Errorf("invalid credit cookie: %w", err)
	}

	http.SetCookie(s.w, c)

	s.mu.Lock()
	s.written[name] = value
	s.mu.Unlock()
	return nil
}

// MemorySlot is an in-process Slot. It ignores retention attributes.
type MemorySlot struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemorySlot creates an empty in-memory slot.
func NewMemorySlot() *MemorySlot {
	return &MemorySlot{values: make(map[string]string)}
}

// Get returns the stored value.
func (s *MemorySlot) Get(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[name]
	return v, ok
}

// Set stores value under name.
func (s *MemorySlot) Set(name, value string, _ SlotOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
	return nil
}

var (
	_ Slot = (*CookieSlot)(nil)
	_ Slot = (*MemorySlot)(nil)
)

// CompareAndSwap stores value if the current value equals old.
func (s *MemorySlot) CompareAndSwap(name, old, value string, _ SlotOptions) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values[name] != old {
		return false, nil
	}
	s.values[name] = value
	return true, nil
}

var _ SwapSlot = (*MemorySlot)(nil)
