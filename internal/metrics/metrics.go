package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	AuthRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_rejections_total",
			Help: "Total number of rejected wallet proofs",
		},
		[]string{"reason"},
	)

	Verifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quest_verifications_total",
			Help: "Verification attempts by channel and outcome",
		},
		[]string{"channel", "result"},
	)
	Claims = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quest_claims_total",
			Help: "Claim attempts by quest type and outcome",
		},
		[]string{"quest_type", "result"},
	)
	BookkeepingFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quest_bookkeeping_failures_total",
			Help: "Off-chain writes that failed after a successful on-chain claim",
		},
	)
	IndexedClaims = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quest_indexed_claims_total",
			Help: "Claims backfilled from RewardClaimed logs",
		},
	)
)

var registerOnce sync.Once

// Register 注册全部指标，重复调用无副作用
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			AuthRejections,
			Verifications,
			Claims,
			BookkeepingFailures,
			IndexedClaims,
		)
	})
}
