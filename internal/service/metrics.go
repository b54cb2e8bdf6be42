package service

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	apperrors "github.com/utafrali/pointledger/pkg/errors"
)

// Metrics holds the ledger's business collectors.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	points     *prometheus.CounterVec
	treasury   *prometheus.CounterVec
}

// NewMetrics registers the ledger collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pointledger",
			Name:      "ledger_operations_total",
			Help:      "Ledger operations by name and result code.",
		}, []string{"operation", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pointledger",
			Name:      "ledger_operation_duration_seconds",
			Help:      "Ledger operation latency in seconds, including store transaction time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		points: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pointledger",
			Name:      "points_issued_total",
			Help:      "Points credited to accounts, by source.",
		}, []string{"source"}),
		treasury: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pointledger",
			Name:      "treasury_flow_total",
			Help:      "Base currency moved through the treasury, by direction.",
		}, []string{"direction"}),
	}
	reg.MustRegister(m.operations, m.duration, m.points, m.treasury)
	return m
}

// observe records one finished operation. A nil receiver records nothing.
func (m *Metrics) observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = strings.ToLower(apperrors.Code(err))
	}
	m.operations.WithLabelValues(op, result).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) issued(source string, points int64) {
	if m == nil || points <= 0 {
		return
	}
	m.points.WithLabelValues(source).Add(float64(points))
}

func (m *Metrics) flow(direction string, amount int64) {
	if m == nil || amount <= 0 {
		return
	}
	m.treasury.WithLabelValues(direction).Add(float64(amount))
}
