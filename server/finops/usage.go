// Package finops tracks model invocation spend. Token counts are the
// pipeline's estimates, so reported cost is an approximation for capacity
// planning, not billing.
package finops

import (
	"log/slog"
	"sync"
	"time"
)

// ModelPrice is the provider's list price in USD per one million tokens.
type ModelPrice struct {
	PromptUSD     float64
	CompletionUSD float64
}

// defaultPrices covers the built-in registry. Models without a price entry
// are tracked by volume only.
var defaultPrices = map[string]ModelPrice{
	"gpt-4o-mini":          {PromptUSD: 0.15, CompletionUSD: 0.60},
	"gpt-4o":               {PromptUSD: 2.50, CompletionUSD: 10.00},
	"llama-3.1-8b-instant": {PromptUSD: 0.05, CompletionUSD: 0.08},
	"deepseek-chat":        {PromptUSD: 0.27, CompletionUSD: 1.10},
}

// ModelUsage aggregates one model's dispatch volume and estimated spend.
type ModelUsage struct {
	Dispatches       int64   `json:"dispatches"`
	Failures         int64   `json:"failures"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
}

// UsageReport is a point-in-time view across all models.
type UsageReport struct {
	Since            time.Time              `json:"since"`
	TotalDispatches  int64                  `json:"total_dispatches"`
	TotalFailures    int64                  `json:"total_failures"`
	EstimatedCostUSD float64                `json:"estimated_cost_usd"`
	ByModel          map[string]*ModelUsage `json:"by_model"`
}

// UsageMonitor accumulates per-model dispatch statistics in memory.
type UsageMonitor struct {
	mu      sync.RWMutex
	byModel map[string]*ModelUsage
	prices  map[string]ModelPrice
	since   time.Time
	logger  *slog.Logger
}

// NewUsageMonitor creates a monitor with the default price table.
func NewUsageMonitor(logger *slog.Logger) *UsageMonitor {
	return &UsageMonitor{
		byModel: make(map[string]*ModelUsage),
		prices:  defaultPrices,
		since:   time.Now(),
		logger:  logger,
	}
}

// RecordDispatch accounts one model call. Failed calls count toward volume
// and prompt spend; a failed call produced no completion.
func (m *UsageMonitor) RecordDispatch(modelID string, promptTokens, completionTokens int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	usage, ok := m.byModel[modelID]
	if !ok {
		usage = &ModelUsage{}
		m.byModel[modelID] = usage
	}

	usage.Dispatches++
	usage.PromptTokens += int64(promptTokens)
	if err != nil {
		usage.Failures++
	} else {
		usage.CompletionTokens += int64(completionTokens)
	}

	if price, ok := m.prices[modelID]; ok {
		cost := float64(promptTokens) / 1e6 * price.PromptUSD
		if err == nil {
			cost += float64(completionTokens) / 1e6 * price.CompletionUSD
		}
		usage.EstimatedCostUSD += cost
	}
}

// Report returns a copy of the accumulated statistics.
func (m *UsageMonitor) Report() UsageReport {
	m.mu.RLock()
	defer m.mu.RUnlock()

	report := UsageReport{
		Since:   m.since,
		ByModel: make(map[string]*ModelUsage, len(m.byModel)),
	}
	for modelID, usage := range m.byModel {
		copied := *usage
		report.ByModel[modelID] = &copied
		report.TotalDispatches += usage.Dispatches
		report.TotalFailures += usage.Failures
		report.EstimatedCostUSD += usage.EstimatedCostUSD
	}
	return report
}
