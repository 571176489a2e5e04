package tokens

import (
	"sync"
	"time"
)

// Usage is an immutable token-usage record attributed to a (provider, phase,
// task) triple.
type Usage struct {
	Provider     string    `json:"provider"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	TotalTokens  int       `json:"total_tokens"`
	Cost         float64   `json:"estimated_cost"`
	Phase        int       `json:"phase"`
	Task         string    `json:"task"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewUsage builds a Usage record with derived TotalTokens and Cost.
func NewUsage(calc *CostCalculator, provider string, in, out, phase int, task string) Usage {
	return Usage{
		Provider:     provider,
		InputTokens:  in,
		OutputTokens: out,
		TotalTokens:  in + out,
		Cost:         calc.Calculate(in, out, provider),
		Phase:        phase,
		Task:         task,
		Timestamp:    time.Now(),
	}
}

// BudgetConfig controls the thresholds CheckBudget alerts against.
type BudgetConfig struct {
	DailyBudget     float64
	WeeklyBudget    float64
	MonthlyBudget   float64
	AlertThresholds []int // percentages, e.g. 50, 75, 90, 100
}

// DefaultBudgetConfig matches the published defaults.
func DefaultBudgetConfig() BudgetConfig {
	return BudgetConfig{
		DailyBudget:     10.0,
		WeeklyBudget:    50.0,
		MonthlyBudget:   200.0,
		AlertThresholds: []int{50, 75, 90, 100},
	}
}

// Alert is a single budget-threshold crossing.
type Alert struct {
	Threshold       int       `json:"threshold"`
	CurrentSpending float64   `json:"current_spending"`
	BudgetLimit     float64   `json:"budget_limit"`
	Period          string    `json:"period"`
	Timestamp       time.Time `json:"timestamp"`
}

// ProviderBreakdown aggregates usage for one provider.
type ProviderBreakdown struct {
	TotalTokens int     `json:"total_tokens"`
	TotalCost   float64 `json:"total_cost"`
	Requests    int     `json:"requests"`
}

// Summary is the aggregated view returned by Tracker.Summary.
type Summary struct {
	TotalTokens      int                          `json:"total_tokens"`
	TotalCost        float64                      `json:"total_cost"`
	RequestCount     int                          `json:"request_count"`
	ByProvider       map[string]*ProviderBreakdown `json:"by_provider"`
	ByPhase          map[int]*ProviderBreakdown    `json:"by_phase"`
}

// Tracker is an append-only log of token usage, guarded for concurrent
// writers; Summary and CheckBudget take a snapshot of the current log.
type Tracker struct {
	mu      sync.RWMutex
	records []Usage
	budget  BudgetConfig
}

// NewTracker returns a Tracker configured with budget (or the defaults).
func NewTracker(budget BudgetConfig) *Tracker {
	if len(budget.AlertThresholds) == 0 {
		budget = DefaultBudgetConfig()
	}
	return &Tracker{budget: budget}
}

// Track appends a usage record to the log.
func (t *Tracker) Track(u Usage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, u)
}

// Summary aggregates every tracked record, optionally filtered to a single
// provider (empty string = all providers).
func (t *Tracker) Summary(provider string) Summary {
	t.mu.RLock()
	snapshot := make([]Usage, len(t.records))
	copy(snapshot, t.records)
	t.mu.RUnlock()

	s := Summary{
		ByProvider: make(map[string]*ProviderBreakdown),
		ByPhase:    make(map[int]*ProviderBreakdown),
	}
	for _, r := range snapshot {
		if provider != "" && r.Provider != provider {
			continue
		}
		s.TotalTokens += r.TotalTokens
		s.TotalCost += r.Cost
		s.RequestCount++

		pb := s.ByProvider[r.Provider]
		if pb == nil {
			pb = &ProviderBreakdown{}
			s.ByProvider[r.Provider] = pb
		}
		pb.TotalTokens += r.TotalTokens
		pb.TotalCost += r.Cost
		pb.Requests++

		ph := s.ByPhase[r.Phase]
		if ph == nil {
			ph = &ProviderBreakdown{}
			s.ByPhase[r.Phase] = ph
		}
		ph.TotalTokens += r.TotalTokens
		ph.TotalCost += r.Cost
		ph.Requests++
	}
	return s
}

// CheckBudget reports every threshold crossed by current spending against
// each configured period's budget. The tracker never enforces the budget;
// it only reports.
func (t *Tracker) CheckBudget() []Alert {
	total := t.Summary("").TotalCost

	var alerts []Alert
	periods := []struct {
		name   string
		budget float64
	}{
		{"daily", t.budget.DailyBudget},
		{"weekly", t.budget.WeeklyBudget},
		{"monthly", t.budget.MonthlyBudget},
	}
	now := time.Now()
	for _, p := range periods {
		if p.budget <= 0 {
			continue
		}
		pct := (total / p.budget) * 100
		for _, threshold := range t.budget.AlertThresholds {
			if pct >= float64(threshold) {
				alerts = append(alerts, Alert{
					Threshold:       threshold,
					CurrentSpending: total,
					BudgetLimit:     p.budget,
					Period:          p.name,
					Timestamp:       now,
				})
			}
		}
	}
	return alerts
}

// Records returns a snapshot copy of every tracked usage record, used by
// StatsCollector's period filtering.
func (t *Tracker) Records() []Usage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Usage, len(t.records))
	copy(out, t.records)
	return out
}
