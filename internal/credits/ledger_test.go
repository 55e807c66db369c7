package credits

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestBank(t *testing.T, cfg Config) *Bank {
	t.Helper()
	if cfg.Secret == "" {
		cfg.Secret = "test-secret"
	}
	if cfg.InitialCredits == 0 {
		cfg.InitialCredits = 10
	}
	if cfg.Costs == (Costs{}) {
		cfg.Costs = DefaultCosts()
	}
	b, err := NewBank(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewBank() error = %v", err)
	}
	return b
}

func TestLedger_FreshClient(t *testing.T) {
	bank := newTestBank(t, Config{})
	slot := NewMemorySlot()
	l := bank.Ledger(slot)

	if got := l.Balance(); got != 10 {
		t.Fatalf("Balance() = %d, want 10", got)
	}
	if _, ok := slot.Get(bank.CookieName()); ok {
		t.Fatal("reading the balance must not write a token")
	}

	got, err := l.Decrement(3)
	if err != nil {
		t.Fatalf("Decrement() error = %v", err)
	}
	if got != 7 {
		t.Fatalf("Decrement(3) = %d, want 7", got)
	}
	if l.Balance() != 7 {
		t.Fatalf("Balance() = %d, want 7", l.Balance())
	}

	token, ok := slot.Get(bank.CookieName())
	if !ok {
		t.Fatal("expected a token after Decrement")
	}
	p, ok := bank.Codec().Decode(token)
	if !ok {
		t.Fatal("issued token does not decode")
	}
	if p.Credits != 7 {
		t.Errorf("token credits = %d, want 7", p.Credits)
	}
	if p.Version != PayloadVersion {
		t.Errorf("token version = %d, want %d", p.Version, PayloadVersion)
	}
	if p.Seq != 1 {
		t.Errorf("token seq = %d, want 1", p.Seq)
	}
}

func TestLedger_SetBalanceClamps(t *testing.T) {
	tests := []struct {
		in   float64
		want int64
	}{
		{-5, 0},
		{3.9, 3},
		{0, 0},
		{0.99, 0},
		{42, 42},
		{math.NaN(), 0},
		{math.Inf(1), MaxBalance},
		{math.Inf(-1), 0},
		{1e300, MaxBalance},
	}
	bank := newTestBank(t, Config{})
	for _, tt := range tests {
		l := bank.Ledger(NewMemorySlot())
		got, err := l.SetBalance(tt.in)
		if err != nil {
			t.Fatalf("SetBalance(%v) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("SetBalance(%v) = %d, want %d", tt.in, got, tt.want)
		}
		if l.Balance() != tt.want {
			t.Errorf("Balance() after SetBalance(%v) = %d, want %d", tt.in, l.Balance(), tt.want)
		}
	}
}

func TestLedger_Ensure(t *testing.T) {
	bank := newTestBank(t, Config{})
	l := bank.Ledger(NewMemorySlot())
	if _, err := l.SetBalance(5); err != nil {
		t.Fatal(err)
	}

	for cost, want := range map[int64]bool{0: true, 1: true, 5: true, 6: false} {
		if got := l.Ensure(cost); got != want {
			t.Errorf("Ensure(%d) = %v, want %v", cost, got, want)
		}
	}
	if l.Balance() != 5 {
		t.Errorf("Ensure mutated the balance: %d", l.Balance())
	}
}

func TestLedger_DecrementFloorsAtZero(t *testing.T) {
	bank := newTestBank(t, Config{})
	l := bank.Ledger(NewMemorySlot())
	if _, err := l.SetBalance(2); err != nil {
		t.Fatal(err)
	}

	got, err := l.Decrement(10)
	if err != nil {
		t.Fatalf("Decrement() error = %v", err)
	}
	if got != 0 {
		t.Errorf("Decrement(10) from 2 = %d, want 0", got)
	}

	if _, err := l.SetBalance(4); err != nil {
		t.Fatal(err)
	}
	if got, _ := l.Decrement(-3); got != 4 {
		t.Errorf("Decrement(-3) = %d, want 4 (negative cost debits nothing)", got)
	}
}

func TestLedger_SecretRotation(t *testing.T) {
	slot := NewMemorySlot()
	a := newTestBank(t, Config{Secret: "A"})
	if _, err := a.Ledger(slot).SetBalance(3); err != nil {
		t.Fatal(err)
	}

	b := newTestBank(t, Config{Secret: "B"})
	if got := b.Ledger(slot).Balance(); got != 10 {
		t.Errorf("balance under rotated secret = %d, want default 10", got)
	}
	if got := a.Ledger(slot).Balance(); got != 3 {
		t.Errorf("balance under original secret = %d, want 3", got)
	}
}

func TestLedger_TamperedTokenFallsBack(t *testing.T) {
	bank := newTestBank(t, Config{})
	slot := NewMemorySlot()
	l := bank.Ledger(slot)
	if _, err := l.SetBalance(1); err != nil {
		t.Fatal(err)
	}

	forged, _ := newTestBank(t, Config{Secret: "attacker"}).Codec().Encode(Payload{Version: 1, Credits: 1000000})
	_ = slot.Set(bank.CookieName(), forged, SlotOptions{})

	if got := l.Balance(); got != 10 {
		t.Errorf("Balance() with forged token = %d, want 10", got)
	}
}

func TestLedger_SpendLogsRejectedTokenOnce(t *testing.T) {
	var logs bytes.Buffer
	bank, err := NewBank(Config{Secret: "test-secret", InitialCredits: 10, Costs: DefaultCosts()},
		slog.New(slog.NewTextHandler(&logs, nil)))
	if err != nil {
		t.Fatalf("NewBank() error = %v", err)
	}
	slot := NewMemorySlot()
	_ = slot.Set(bank.CookieName(), "garbage.token", SlotOptions{})

	got, err := bank.Ledger(slot).Spend(1, func() error { return nil })
	if err != nil {
		t.Fatalf("Spend() error = %v", err)
	}
	if got != 9 {
		t.Errorf("Spend() = %d, want 9", got)
	}
	if n := strings.Count(logs.String(), "credit token rejected"); n != 1 {
		t.Errorf("rejection logged %d times, want 1", n)
	}

	logs.Reset()
	l := bank.Ledger(NewMemorySlot())
	_ = l.slot.Set(bank.CookieName(), "garbage.token", SlotOptions{})
	if _, err := l.Spend(1, func() error { return errors.New("llm down") }); err == nil {
		t.Fatal("Spend() error = nil, want fn error")
	}
	if n := strings.Count(logs.String(), "credit token rejected"); n != 1 {
		t.Errorf("rejection logged %d times on failed call, want 1", n)
	}
}

func TestLedger_Spend(t *testing.T) {
	bank := newTestBank(t, Config{InitialCredits: 1, Costs: Costs{Discover: 1, Outline: 1, Generate: 1, CRM: 1}})
	l := bank.Ledger(NewMemorySlot())
	costs := l.Costs()

	calls := 0
	action := func() error { calls++; return nil }

	got, err := l.Spend(costs.MustFor(OpDiscover), action)
	if err != nil {
		t.Fatalf("first Spend() error = %v", err)
	}
	if got != 0 {
		t.Fatalf("balance after first Spend() = %d, want 0", got)
	}

	_, err = l.Spend(costs.MustFor(OpOutline), action)
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("second Spend() error = %v, want ErrInsufficientCredits", err)
	}
	if calls != 1 {
		t.Errorf("action ran %d times, want 1", calls)
	}
	if l.Balance() != 0 {
		t.Errorf("balance = %d, want 0", l.Balance())
	}
}

func TestLedger_SpendFailureDoesNotDebit(t *testing.T) {
	bank := newTestBank(t, Config{})
	l := bank.Ledger(NewMemorySlot())
	boom := errors.New("llm unavailable")

	_, err := l.Spend(2, func() error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("Spend() error = %v, want %v", err, boom)
	}
	if l.Balance() != 10 {
		t.Errorf("balance = %d, want 10", l.Balance())
	}
}

func TestLedger_Topup(t *testing.T) {
	bank := newTestBank(t, Config{})
	l := bank.Ledger(NewMemorySlot())

	got, err := l.Topup(5.7)
	if err != nil {
		t.Fatalf("Topup() error = %v", err)
	}
	if got != 15 {
		t.Errorf("Topup(5.7) = %d, want 15", got)
	}
	if got, _ := l.Topup(-20); got != 15 {
		t.Errorf("Topup(-20) = %d, want 15", got)
	}
	if got, _ := l.Topup(math.Inf(1)); got != MaxBalance {
		t.Errorf("Topup(+Inf) = %d, want %d", got, MaxBalance)
	}
}

func TestBank_TopupAllowed(t *testing.T) {
	tests := []struct {
		name       string
		production bool
		enabled    bool
		want       bool
	}{
		{"development", false, false, true},
		{"production", true, false, false},
		{"production with flag", true, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bank := newTestBank(t, Config{Production: tt.production, TopupEnabled: tt.enabled})
			if got := bank.Ledger(NewMemorySlot()).TopupAllowed(); got != tt.want {
				t.Errorf("TopupAllowed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewBank_Secret(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if _, err := NewBank(Config{Production: true}, logger); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("NewBank() in production without secret error = %v, want ErrMissingSecret", err)
	}

	dev, err := NewBank(Config{InitialCredits: 10}, logger)
	if err != nil {
		t.Fatalf("NewBank() in development error = %v", err)
	}
	slot := NewMemorySlot()
	if _, err := dev.Ledger(slot).SetBalance(4); err != nil {
		t.Fatal(err)
	}
	explicit := newTestBank(t, Config{Secret: DevSecret})
	if got := explicit.Ledger(slot).Balance(); got != 4 {
		t.Errorf("development fallback should sign with DevSecret, balance = %d", got)
	}
}

func TestNewBank_NormalizesConfig(t *testing.T) {
	bank := newTestBank(t, Config{InitialCredits: -3, Costs: Costs{Discover: -1, Outline: 2}})
	if bank.InitialCredits() != 0 {
		t.Errorf("InitialCredits() = %d, want 0", bank.InitialCredits())
	}
	if c := bank.Costs(); c.Discover != 0 || c.Outline != 2 {
		t.Errorf("Costs() = %+v", c)
	}
	if bank.CookieName() != DefaultCookieName {
		t.Errorf("CookieName() = %q", bank.CookieName())
	}
}

// racingSlot lets another writer land between the ledger's read and write.
type racingSlot struct {
	*MemorySlot
	interfere func()
}

func (s *racingSlot) CompareAndSwap(name, old, value string, opts SlotOptions) (bool, error) {
	if s.interfere != nil {
		f := s.interfere
		s.interfere = nil
		f()
	}
	return s.MemorySlot.CompareAndSwap(name, old, value, opts)
}

func TestLedger_DecrementRetriesOnConcurrentWrite(t *testing.T) {
	bank := newTestBank(t, Config{})
	slot := &racingSlot{MemorySlot: NewMemorySlot()}
	l := bank.Ledger(slot)
	if _, err := l.SetBalance(10); err != nil {
		t.Fatal(err)
	}

	other := bank.Ledger(slot.MemorySlot)
	slot.interfere = func() {
		if _, err := other.Decrement(4); err != nil {
			t.Errorf("concurrent Decrement() error = %v", err)
		}
	}

	got, err := l.Decrement(1)
	if err != nil {
		t.Fatalf("Decrement() error = %v", err)
	}
	if got != 5 {
		t.Errorf("Decrement() = %d, want 5 (both debits applied)", got)
	}
}

type stuckSlot struct{ *MemorySlot }

func (stuckSlot) CompareAndSwap(string, string, string, SlotOptions) (bool, error) {
	return false, nil
}

func TestLedger_ConflictAfterRetries(t *testing.T) {
	bank := newTestBank(t, Config{})
	l := bank.Ledger(stuckSlot{NewMemorySlot()})
	if _, err := l.Decrement(1); !errors.Is(err, ErrConflict) {
		t.Fatalf("Decrement() error = %v, want ErrConflict", err)
	}
}

func TestCookieSlot(t *testing.T) {
	bank := newTestBank(t, Config{})
	bank.now = func() time.Time { return time.UnixMilli(1700000000000) }

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/discover", nil)
	l := bank.LedgerFor(rec, req)

	if _, err := l.Decrement(2); err != nil {
		t.Fatalf("Decrement() error = %v", err)
	}
	if l.Balance() != 8 {
		t.Fatalf("same-request read = %d, want 8", l.Balance())
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != DefaultCookieName || !c.HttpOnly || !c.Secure || c.Path != "/" || c.SameSite != http.SameSiteLaxMode {
		t.Errorf("unexpected cookie attributes: %+v", c)
	}
	if c.MaxAge != 30*24*60*60 {
		t.Errorf("MaxAge = %d, want 30 days", c.MaxAge)
	}
	if !strings.Contains(rec.Header().Get("Set-Cookie"), "HttpOnly") {
		t.Error("Set-Cookie header missing HttpOnly")
	}

	next := httptest.NewRequest(http.MethodGet, "/api/credits", nil)
	next.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	if got := bank.LedgerFor(httptest.NewRecorder(), next).Balance(); got != 8 {
		t.Errorf("next request balance = %d, want 8", got)
	}
}
