package metrics

import (
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"swapEngine/internal/model"
)

const namespace = "amm"

// Collector turns decoded pair events into Prometheus series.
type Collector struct {
	PoolsCreated prometheus.Counter
	Events       *prometheus.CounterVec
	Reserve      *prometheus.GaugeVec
	TotalSupply  *prometheus.GaugeVec
	LastBlock    prometheus.Gauge

	highest atomic.Uint64
}

// New builds a collector and registers it with reg. A nil reg uses a fresh
// registry, retrievable through the returned Gatherer.
func New(reg prometheus.Registerer) (*Collector, prometheus.Gatherer, error) {
	var gatherer prometheus.Gatherer
	if reg == nil {
		r := prometheus.NewRegistry()
		reg, gatherer = r, r
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{
		PoolsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pools_created_total",
			Help:      "Pairs announced by PairCreated.",
		}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pair_events_total",
			Help:      "Pair events by name.",
		}, []string{"event"}),
		Reserve: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pair_reserve",
			Help:      "Reserve reported by the latest Sync, in raw token units.",
		}, []string{"pool", "token"}),
		TotalSupply: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pair_total_supply",
			Help:      "Outstanding liquidity shares per pair.",
		}, []string{"pool"}),
		LastBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_event_block",
			Help:      "Highest block number observed.",
		}),
	}

	for _, collector := range []prometheus.Collector{c.PoolsCreated, c.Events, c.Reserve, c.TotalSupply, c.LastBlock} {
		if err := reg.Register(collector); err != nil {
			return nil, nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return c, gatherer, nil
}

// Observe records one decoded event. Callers feed events from a single
// goroutine.
func (c *Collector) Observe(event *model.TypedEvent) error {
	if event == nil {
		return nil
	}
	if block := event.BlockNumber; block > c.highest.Load() {
		c.highest.Store(block)
		c.LastBlock.Set(float64(block))
	}

	switch payload := event.Decoded.(type) {
	case model.PairCreatedEventData:
		c.PoolsCreated.Inc()
	case model.SyncEventData:
		reserve0, err := parseAmount(payload.Reserve0)
		if err != nil {
			return err
		}
		reserve1, err := parseAmount(payload.Reserve1)
		if err != nil {
			return err
		}
		c.Reserve.WithLabelValues(event.Address, event.PoolMeta.Token0).Set(reserve0)
		c.Reserve.WithLabelValues(event.Address, event.PoolMeta.Token1).Set(reserve1)
	}
	c.Events.WithLabelValues(event.EventName).Inc()
	return nil
}

// ObserveSnapshot records the share supply of a pair state.
func (c *Collector) ObserveSnapshot(snap model.PoolSnapshot) error {
	supply, err := parseAmount(snap.TotalSupply)
	if err != nil {
		return err
	}
	c.TotalSupply.WithLabelValues(snap.Address).Set(supply)
	return nil
}

// WriteTextfile writes every series of g to path in the node exporter
// textfile format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func parseAmount(value string) (float64, error) {
	n, ok := new(big.Float).SetString(value)
	if !ok {
		return 0, fmt.Errorf("invalid amount %q", value)
	}
	f, _ := n.Float64()
	return f, nil
}

