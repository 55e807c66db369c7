package credits

import (
	"fmt"
	"math"
)

// MaxBalance is the largest balance a token can carry. It is the largest
// integer a JSON number represents exactly.
const MaxBalance int64 = 1<<53 - 1

// maxUpdateAttempts bounds compare-and-swap retries on a SwapSlot.
const maxUpdateAttempts = 8

// SwapSlot is a Slot that can replace a value only if it is unchanged.
// Ledgers use it to avoid lost updates when several writers share one slot.
type SwapSlot interface {
	Slot

	// CompareAndSwap stores value if the current value equals old ("" for
	// absent) and reports whether it did.
	CompareAndSwap(name, old, value string, opts SlotOptions) (bool, error)
}

// Ledger reads and writes one client's balance. It is bound to a single
// request's slot and is not safe for concurrent use.
type Ledger struct {
	bank *Bank
	slot Slot

	// rejected is the last token that failed verification, so it is
	// logged once however many times it is read.
	rejected string
}

// Balance returns the current balance, or the initial balance when the slot
// holds no valid token. Reading never writes.
func (l *Ledger) Balance() int64 {
	_, p := l.read()
	return p.Credits
}

// SetBalance stores max(0, floor(x)) and returns the stored value.
func (l *Ledger) SetBalance(x float64) (int64, error) {
	target := clamp(x)
	return l.update(func(int64) int64 { return target })
}

// Ensure reports whether the balance covers cost.
func (l *Ledger) Ensure(cost int64) bool {
	return l.Balance() >= cost
}

// Decrement debits cost, never going below zero, and returns the new balance.
// Negative costs debit nothing.
func (l *Ledger) Decrement(cost int64) (int64, error) {
	cost = max(0, cost)
	return l.update(func(cur int64) int64 {
		return max(0, cur-cost)
	})
}

// Topup adds max(0, floor(amount)) to the balance.
func (l *Ledger) Topup(amount float64) (int64, error) {
	add := clamp(amount)
	return l.update(func(cur int64) int64 {
		if cur > MaxBalance-add {
			return MaxBalance
		}
		return cur + add
	})
}

// Spend runs fn only if the balance covers cost, and debits only if fn
// succeeds. It returns ErrInsufficientCredits without calling fn, and fn's
// error without debiting.
func (l *Ledger) Spend(cost int64, fn func() error) (int64, error) {
	balance := l.Balance()
	if balance < cost {
		return balance, ErrInsufficientCredits
	}
	if err := fn(); err != nil {
		return balance, err
	}
	return l.Decrement(cost)
}

// Costs returns the price list.
func (l *Ledger) Costs() Costs {
	return l.bank.Costs()
}

// TopupAllowed reports whether unauthenticated top-ups are permitted.
func (l *Ledger) TopupAllowed() bool {
	return l.bank.TopupAllowed()
}

// read returns the raw slot value and the payload it represents, falling back
// to the initial balance.
func (l *Ledger) read() (string, Payload) {
	name := l.bank.cfg.CookieName
	raw, present := l.slot.Get(name)
	fallback := Payload{Version: PayloadVersion, Credits: l.bank.cfg.InitialCredits}
	if !present || raw == "" {
		return "", fallback
	}

	p, ok := l.bank.codec.Decode(raw)
	if !ok {
		// Tampered, forged, signed under another secret, or just corrupt.
		// The client gets the initial balance either way.
		if raw != l.rejected {
			l.rejected = raw
			l.bank.logger.Warn("credit token rejected", "slot", name, "token_len", len(raw))
		}
		return raw, fallback
	}
	return raw, p
}

// update applies fn to the current balance and writes the result.
func (l *Ledger) update(fn func(cur int64) int64) (int64, error) {
	name := l.bank.cfg.CookieName
	opts := l.bank.slotOptions()
	swap, canSwap := l.slot.(SwapSlot)

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		raw, cur := l.read()
		next := clampInt(fn(cur.Credits))

		token, err := l.bank.codec.Encode(Payload{
			Version:  PayloadVersion,
			Credits:  next,
			IssuedAt: l.bank.now().UnixMilli(),
			Seq:      cur.Seq + 1,
		})
		if err != nil {
			return 0, err
		}

		if !canSwap {
			if err := l.slot.Set(name, token, opts); err != nil {
				return 0, fmt.Errorf("failed to store credit token: %w", err)
			}
			return next, nil
		}

		swapped, err := swap.CompareAndSwap(name, raw, token, opts)
		if err != nil {
			return 0, fmt.Errorf("failed to store credit token: %w", err)
		}
		if swapped {
			return next, nil
		}
	}
	return 0, ErrConflict
}

// clamp converts an arbitrary number to a valid balance.
func clamp(x float64) int64 {
	switch {
	case math.IsNaN(x) || x <= 0:
		return 0
	case x >= float64(MaxBalance):
		return MaxBalance
	default:
		return int64(math.Floor(x))
	}
}

func clampInt(n int64) int64 {
	return min(max(0, n), MaxBalance)
}
