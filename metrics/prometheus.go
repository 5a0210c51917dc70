package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// engineTime tracks the cumulative seconds spent in engine functions,
	// labelled by market, engine and function.
	engineTime *prometheus.CounterVec
	// orderCounter counts orders processed per market and outcome.
	orderCounter *prometheus.CounterVec
	// tradeCounter counts trades generated per market.
	tradeCounter *prometheus.CounterVec
)

func init() {
	engineTime = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "meridian",
			Subsystem: "engine",
			Name:      "seconds_total",
			Help:      "Total time spent in engine functions",
		},
		[]string{"market", "engine", "fn"},
	)
	orderCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "meridian",
			Subsystem: "execution",
			Name:      "orders_total",
			Help:      "Number of orders processed",
		},
		[]string{"market", "outcome"},
	)
	tradeCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "meridian",
			Subsystem: "execution",
			Name:      "trades_total",
			Help:      "Number of trades generated",
		},
		[]string{"market"},
	)
	prometheus.MustRegister(engineTime, orderCounter, tradeCounter)
}

// OrderCounterInc increments the order counter for a market and outcome.
func OrderCounterInc(market, outcome string) {
	orderCounter.WithLabelValues(market, outcome).Inc()
}

// TradeCounterAdd adds to the trade counter for a market.
func TradeCounterAdd(market string, n int) {
	tradeCounter.WithLabelValues(market).Add(float64(n))
}

// TimeCounter holds a timer for an engine function call.
type TimeCounter struct {
	market string
	engine string
	fn     string
	start  time.Time
}

// NewTimeCounter returns a new TimeCounter with the start time set to now.
func NewTimeCounter(market, engine, fn string) *TimeCounter {
	return &TimeCounter{
		market: market,
		engine: engine,
		fn:     fn,
		start:  time.Now(),
	}
}

// EngineTimeCounterAdd adds the elapsed time since the counter was created
// to the engine time metric.
func (t *TimeCounter) EngineTimeCounterAdd() {
	engineTime.WithLabelValues(t.market, t.engine, t.fn).
		Add(time.Since(t.start).Seconds())
}
