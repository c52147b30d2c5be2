package llmrouter

import (
	"context"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// ServiceType tags which pipeline produced a cost record.
type ServiceType string

const (
	ServiceChat  ServiceType = "chat"
	ServiceEmbed ServiceType = "embed"
)

// CostRecord is one append-only ledger entry. Records are created on every
// successful orchestration call and never mutated or deleted.
type CostRecord struct {
	ID         string      `json:"id"`
	Provider   string      `json:"provider"`
	Service    ServiceType `json:"service_type"`
	TokensUsed int         `json:"tokens_used"`
	Cost       float64     `json:"cost"`
	RecordedAt time.Time   `json:"recorded_at"`
}

// LedgerSink receives every cost record for persistence. Sink failures are
// logged and swallowed: persistence problems must never fail a request.
type LedgerSink interface {
	Append(ctx context.Context, rec CostRecord) error
}

// atomicFloat64 adds float64 values with a compare-and-swap loop over the
// raw bits, so running totals need no lock.
type atomicFloat64 struct {
	bits atomic.Uint64
}

func (f *atomicFloat64) Add(v float64) {
	for {
		old := f.bits.Load()
		next := math.Float64frombits(old) + v
		if f.bits.CompareAndSwap(old, math.Float64bits(next)) {
			return
		}
	}
}

func (f *atomicFloat64) Load() float64 {
	return math.Float64frombits(f.bits.Load())
}

type providerTotals struct {
	cost   atomicFloat64
	tokens atomic.Int64
}

// ProviderTotals is a read snapshot of one provider's running totals.
type ProviderTotals struct {
	Cost   float64 `json:"cost"`
	Tokens int64   `json:"tokens"`
}

// Summary is a point-in-time view of the tracker for reporting surfaces.
type Summary struct {
	TotalCost   float64                   `json:"total_cost"`
	TotalTokens int64                     `json:"total_tokens"`
	ByProvider  map[string]ProviderTotals `json:"by_provider"`
	Month       string                    `json:"month"`
	MonthSpend  float64                   `json:"month_spend"`
	Budget      float64                   `json:"budget,omitempty"`
	OverBudget  bool                      `json:"over_budget"`
}

// CostTracker is the append-only cost ledger with atomic running totals.
// It observes spending and never blocks a request; the hard-stop decision
// belongs to the Client.
type CostTracker struct {
	totalCost   atomicFloat64
	totalTokens atomic.Int64
	byProvider  sync.Map // provider name -> *providerTotals

	mu           sync.Mutex
	records      []CostRecord
	monthSpend   map[string]float64
	warnedMonths map[string]bool

	budget float64
	onWarn func(month string, spent, budget float64)
	sink   LedgerSink
	logger *log.Logger
	now    func() time.Time
}

// CostTrackerOption configures a CostTracker.
type CostTrackerOption func(*CostTracker)

// WithMonthlyBudget sets the monthly budget threshold in USD. Zero disables
// budget observation.
func WithMonthlyBudget(usd float64) CostTrackerOption {
	return func(t *CostTracker) {
		t.budget = usd
	}
}

// WithBudgetCallback registers a callback fired at most once per month when
// the month's spend first crosses the budget.
func WithBudgetCallback(fn func(month string, spent, budget float64)) CostTrackerOption {
	return func(t *CostTracker) {
		t.onWarn = fn
	}
}

// WithLedgerSink forwards every record to a persistent sink.
func WithLedgerSink(sink LedgerSink) CostTrackerOption {
	return func(t *CostTracker) {
		t.sink = sink
	}
}

// WithCostLogger sets the tracker's logger.
func WithCostLogger(logger *log.Logger) CostTrackerOption {
	return func(t *CostTracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewCostTracker returns a tracker with no budget and no sink unless
// configured otherwise.
func NewCostTracker(opts ...CostTrackerOption) *CostTracker {
	t := &CostTracker{
		monthSpend:   make(map[string]float64),
		warnedMonths: make(map[string]bool),
		logger:       log.New(io.Discard),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Record appends a ledger entry and updates the running totals. Negative
// costs are clamped to zero; the ledger invariant is cost >= 0.
func (t *CostTracker) Record(provider string, service ServiceType, tokensUsed int, cost float64) CostRecord {
	if cost < 0 {
		t.logger.Warn("cost tracker: negative cost clamped to zero", "provider", provider, "cost", cost)
		cost = 0
	}

	rec := CostRecord{
		ID:         uuid.New().String(),
		Provider:   provider,
		Service:    service,
		TokensUsed: tokensUsed,
		Cost:       cost,
		RecordedAt: t.now(),
	}

	t.totalCost.Add(cost)
	t.totalTokens.Add(int64(tokensUsed))

	entry, _ := t.byProvider.LoadOrStore(provider, &providerTotals{})
	totals := entry.(*providerTotals)
	totals.cost.Add(cost)
	totals.tokens.Add(int64(tokensUsed))

	month := rec.RecordedAt.Format("2006-01")
	t.mu.Lock()
	t.records = append(t.records, rec)
	t.monthSpend[month] += cost
	spent := t.monthSpend[month]
	warn := t.budget > 0 && spent > t.budget && !t.warnedMonths[month]
	if warn {
		t.warnedMonths[month] = true
	}
	t.mu.Unlock()

	if warn {
		t.logger.Warn("monthly budget exceeded",
			"month", month, "spent", spent, "budget", t.budget)
		if t.onWarn != nil {
			t.onWarn(month, spent, t.budget)
		}
	}

	if t.sink != nil {
		// Detached context: the request that produced this record may
		// already be gone.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := t.sink.Append(ctx, rec); err != nil {
			t.logger.Warn("cost tracker: ledger sink append failed", "error", err)
		}
		cancel()
	}

	return rec
}

// Total returns the global running cost total.
func (t *CostTracker) Total() float64 {
	return t.totalCost.Load()
}

// TokensTotal returns the global running token total.
func (t *CostTracker) TokensTotal() int64 {
	return t.totalTokens.Load()
}

// TotalByProvider returns the running totals for one provider.
func (t *CostTracker) TotalByProvider(provider string) ProviderTotals {
	entry, ok := t.byProvider.Load(provider)
	if !ok {
		return ProviderTotals{}
	}
	totals := entry.(*providerTotals)
	return ProviderTotals{Cost: totals.cost.Load(), Tokens: totals.tokens.Load()}
}

// MonthSpend returns the recorded spend for a month in "2006-01" form.
func (t *CostTracker) MonthSpend(month string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.monthSpend[month]
}

// SeedMonth preloads month-to-date spend from a persistent ledger, so budget
// observation survives process restarts. Seeding does not touch the running
// totals: they cover this process's ledger only.
func (t *CostTracker) SeedMonth(month string, spend float64) {
	if spend <= 0 {
		return
	}
	t.mu.Lock()
	t.monthSpend[month] += spend
	t.mu.Unlock()
}

// OverBudget reports whether the current month's spend has crossed the
// budget, along with both figures. Always false when no budget is set.
func (t *CostTracker) OverBudget() (bool, float64, float64) {
	if t.budget <= 0 {
		return false, 0, t.budget
	}
	month := t.now().Format("2006-01")
	t.mu.Lock()
	spent := t.monthSpend[month]
	t.mu.Unlock()
	return spent > t.budget, spent, t.budget
}

// Records returns a copy of the most recent n ledger entries in
// chronological order; n <= 0 returns the whole ledger.
func (t *CostTracker) Records(n int) []CostRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	start := 0
	if n > 0 && len(t.records) > n {
		start = len(t.records) - n
	}
	out := make([]CostRecord, len(t.records)-start)
	copy(out, t.records[start:])
	return out
}

// Summary snapshots the tracker for reporting surfaces.
func (t *CostTracker) Summary() Summary {
	month := t.now().Format("2006-01")
	s := Summary{
		TotalCost:   t.Total(),
		TotalTokens: t.TokensTotal(),
		ByProvider:  make(map[string]ProviderTotals),
		Month:       month,
		MonthSpend:  t.MonthSpend(month),
		Budget:      t.budget,
	}
	s.OverBudget = t.budget > 0 && s.MonthSpend > t.budget
	t.byProvider.Range(func(key, value interface{}) bool {
		totals := value.(*providerTotals)
		s.ByProvider[key.(string)] = ProviderTotals{
			Cost:   totals.cost.Load(),
			Tokens: totals.tokens.Load(),
		}
		return true
	})
	return s
}
