package billing

// Interval is a billing period.
type Interval string

const (
	Monthly Interval = "monthly"
	Yearly  Interval = "yearly"
)

// Valid reports whether i is a known interval.
func (i Interval) Valid() bool { return i == Monthly || i == Yearly }

// Price binds a Stripe price ID to a plan and interval.
type Price struct {
	Plan     string
	Interval Interval
	ID       string
}

// PriceTable resolves prices in both directions.
type PriceTable struct {
	byPlan  map[string]map[Interval]string
	byPrice map[string]Price
}

// NewPriceTable indexes prices. Entries without an ID are skipped.
func NewPriceTable(prices ...Price) *PriceTable {
	t := &PriceTable{
		byPlan:  make(map[string]map[Interval]string),
		byPrice: make(map[string]Price),
	}
	for _, p := range prices {
		if p.ID == "" {
			continue
		}
		if t.byPlan[p.Plan] == nil {
			t.byPlan[p.Plan] = make(map[Interval]string)
		}
		t.byPlan[p.Plan][p.Interval] = p.ID
		t.byPrice[p.ID] = p
	}
	return t
}

// PriceID returns the Stripe price for plan and interval.
func (t *PriceTable) PriceID(plan string, interval Interval) (string, error) {
	id, ok := t.byPlan[plan][interval]
	if !ok {
		return "", ErrPriceNotConfigured
	}
	return id, nil
}

// Lookup returns the plan a Stripe price belongs to.
func (t *PriceTable) Lookup(priceID string) (Price, bool) {
	p, ok := t.byPrice[priceID]
	return p, ok
}
