package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names. These are the numeric form of the per-tick monitoring line
// the engine logs at Info level: "ratio= budget= vol= reqs= state_orders=
// exchange_orders=".
const (
	MetricInventoryRatio     = "hlmm_inventory_ratio"
	MetricRemainingBudget    = "hlmm_rate_limit_remaining_budget"
	MetricCumVolume          = "hlmm_rate_limit_cum_vlm"
	MetricNRequests          = "hlmm_rate_limit_n_requests"
	MetricStateOrders        = "hlmm_order_state_orders"
	MetricExchangeOrders     = "hlmm_exchange_orders"
	MetricMutationsModify    = "hlmm_mutations_modify_total"
	MetricMutationsPlace     = "hlmm_mutations_place_total"
	MetricMutationsCancel    = "hlmm_mutations_cancel_total"
	MetricMutationsTrimmed   = "hlmm_mutations_trimmed_total"
	MetricBatchCallsTotal    = "hlmm_batch_calls_total"
	MetricTickDuration       = "hlmm_tick_duration_ms"
	MetricCooldownSkips      = "hlmm_cooldown_skips_total"
	MetricCancelOnlyEntered  = "hlmm_cancel_only_entered_total"
	MetricReconcileOrphans   = "hlmm_reconcile_orphans_total"
	MetricReconcileGhosts    = "hlmm_reconcile_ghosts_total"
)

// MetricsHolder holds initialized instruments for one engine process. A
// single coin is typically run per process (spec §1: single-process,
// single-market), but every instrument carries a "coin" attribute so the
// same process could in principle be extended to more than one symbol.
type MetricsHolder struct {
	MutationsModify   metric.Int64Counter
	MutationsPlace    metric.Int64Counter
	MutationsCancel   metric.Int64Counter
	MutationsTrimmed  metric.Int64Counter
	BatchCallsTotal   metric.Int64Counter
	TickDuration      metric.Float64Histogram
	CooldownSkips     metric.Int64Counter
	CancelOnlyEntered metric.Int64Counter
	ReconcileOrphans  metric.Int64Counter
	ReconcileGhosts   metric.Int64Counter

	InventoryRatio  metric.Float64ObservableGauge
	RemainingBudget metric.Float64ObservableGauge
	CumVolume       metric.Float64ObservableGauge
	NRequests       metric.Int64ObservableGauge
	StateOrders     metric.Int64ObservableGauge
	ExchangeOrders  metric.Int64ObservableGauge

	mu              sync.RWMutex
	ratioMap        map[string]float64
	budgetMap       map[string]float64
	cumVlmMap       map[string]float64
	nRequestsMap    map[string]int64
	stateOrdersMap  map[string]int64
	exchOrdersMap   map[string]int64
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the singleton metrics holder
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{
			ratioMap:       make(map[string]float64),
			budgetMap:      make(map[string]float64),
			cumVlmMap:      make(map[string]float64),
			nRequestsMap:   make(map[string]int64),
			stateOrdersMap: make(map[string]int64),
			exchOrdersMap:  make(map[string]int64),
		}
	})
	return globalMetrics
}

// InitMetrics initializes instruments using the meter
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	if m.MutationsModify, err = meter.Int64Counter(MetricMutationsModify, metric.WithDescription("Modify mutations emitted")); err != nil {
		return err
	}
	if m.MutationsPlace, err = meter.Int64Counter(MetricMutationsPlace, metric.WithDescription("Place mutations emitted")); err != nil {
		return err
	}
	if m.MutationsCancel, err = meter.Int64Counter(MetricMutationsCancel, metric.WithDescription("Cancel mutations emitted")); err != nil {
		return err
	}
	if m.MutationsTrimmed, err = meter.Int64Counter(MetricMutationsTrimmed, metric.WithDescription("Mutations dropped by the per-tick priority trim")); err != nil {
		return err
	}
	if m.BatchCallsTotal, err = meter.Int64Counter(MetricBatchCallsTotal, metric.WithDescription("Batch API calls issued (cancel/modify/orders)")); err != nil {
		return err
	}
	if m.TickDuration, err = meter.Float64Histogram(MetricTickDuration, metric.WithDescription("Orchestrator tick wall time"), metric.WithUnit("ms")); err != nil {
		return err
	}
	if m.CooldownSkips, err = meter.Int64Counter(MetricCooldownSkips, metric.WithDescription("Ticks skipped due to emitter cooldown")); err != nil {
		return err
	}
	if m.CancelOnlyEntered, err = meter.Int64Counter(MetricCancelOnlyEntered, metric.WithDescription("Ticks entering cancel-only mode due to exhausted budget")); err != nil {
		return err
	}
	if m.ReconcileOrphans, err = meter.Int64Counter(MetricReconcileOrphans, metric.WithDescription("Orphaned orders found during reconciliation")); err != nil {
		return err
	}
	if m.ReconcileGhosts, err = meter.Int64Counter(MetricReconcileGhosts, metric.WithDescription("Ghost orders cleared during reconciliation")); err != nil {
		return err
	}

	if m.InventoryRatio, err = meter.Float64ObservableGauge(MetricInventoryRatio, metric.WithDescription("cum_vlm / max(n_requests, 1)"),
		metric.WithFloat64Callback(m.observeFloat(&m.ratioMap))); err != nil {
		return err
	}
	if m.RemainingBudget, err = meter.Float64ObservableGauge(MetricRemainingBudget, metric.WithDescription("10000 + cum_vlm - n_requests"),
		metric.WithFloat64Callback(m.observeFloat(&m.budgetMap))); err != nil {
		return err
	}
	if m.CumVolume, err = meter.Float64ObservableGauge(MetricCumVolume, metric.WithDescription("Cumulative traded volume reported by user_rate_limit"),
		metric.WithFloat64Callback(m.observeFloat(&m.cumVlmMap))); err != nil {
		return err
	}
	if m.NRequests, err = meter.Int64ObservableGauge(MetricNRequests, metric.WithDescription("Requests consumed against the rate-limit budget"),
		metric.WithInt64Callback(m.observeInt(&m.nRequestsMap))); err != nil {
		return err
	}
	if m.StateOrders, err = meter.Int64ObservableGauge(MetricStateOrders, metric.WithDescription("Orders tracked locally by OrderState"),
		metric.WithInt64Callback(m.observeInt(&m.stateOrdersMap))); err != nil {
		return err
	}
	if m.ExchangeOrders, err = meter.Int64ObservableGauge(MetricExchangeOrders, metric.WithDescription("Orders reported resting by the exchange"),
		metric.WithInt64Callback(m.observeInt(&m.exchOrdersMap))); err != nil {
		return err
	}

	return nil
}

func (m *MetricsHolder) observeFloat(src *map[string]float64) metric.Float64Callback {
	return func(ctx context.Context, obs metric.Float64Observer) error {
		m.mu.RLock()
		defer m.mu.RUnlock()
		for coin, val := range *src {
			obs.Observe(val, metric.WithAttributes(attribute.String("coin", coin)))
		}
		return nil
	}
}

func (m *MetricsHolder) observeInt(src *map[string]int64) metric.Int64Callback {
	return func(ctx context.Context, obs metric.Int64Observer) error {
		m.mu.RLock()
		defer m.mu.RUnlock()
		for coin, val := range *src {
			obs.Observe(val, metric.WithAttributes(attribute.String("coin", coin)))
		}
		return nil
	}
}

// RecordTick publishes one tick's worth of the monitoring line as gauge
// observations, mirroring spec §7's log line.
func (m *MetricsHolder) RecordTick(coin string, ratio, budget, cumVlm float64, nRequests, stateOrders, exchangeOrders int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ratioMap[coin] = ratio
	m.budgetMap[coin] = budget
	m.cumVlmMap[coin] = cumVlm
	m.nRequestsMap[coin] = nRequests
	m.stateOrdersMap[coin] = stateOrders
	m.exchOrdersMap[coin] = exchangeOrders
}
