package credits

import "fmt"

// Operation names a billable action.
type Operation string

const (
	OpDiscover Operation = "discover"
	OpOutline  Operation = "outline"
	OpGenerate Operation = "generate"
	OpCRM      Operation = "crm"
)

// DefaultCost is the price of every operation unless configured otherwise.
const DefaultCost int64 = 1

// Costs is the price list for billable operations.
type Costs struct {
	Discover int64 `json:"discover" yaml:"discover"`
	Outline  int64 `json:"outline" yaml:"outline"`
	Generate int64 `json:"generate" yaml:"generate"`
	CRM      int64 `json:"crm" yaml:"crm"`
}

// DefaultCosts returns a table with every operation at DefaultCost.
func DefaultCosts() Costs {
	return Costs{
		Discover: DefaultCost,
		Outline:  DefaultCost,
		Generate: DefaultCost,
		CRM:      DefaultCost,
	}
}

// For returns the cost of op.
func (c Costs) For(op Operation) (int64, bool) {
	switch op {
	case OpDiscover:
		return c.Discover, true
	case OpOutline:
		return c.Outline, true
	case OpGenerate:
		return c.Generate, true
	case OpCRM:
		return c.CRM, true
	default:
		return 0, false
	}
}

// MustFor is For for operations known at compile time.
func (c Costs) MustFor(op Operation) int64 {
	cost, ok := c.For(op)
	if !ok {
		panic(fmt.Sprintf("credits: unknown operation %q", op))
	}
	return cost
}

// normalized clamps negative entries to zero.
func (c Costs) normalized() Costs {
	return Costs{
		Discover: max(0, c.Discover),
		Outline:  max(0, c.Outline),
		Generate: max(0, c.Generate),
		CRM:      max(0, c.CRM),
	}
}
