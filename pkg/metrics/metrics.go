// pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TokensIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authmail_tokens_issued_total",
		Help: "Login tokens created.",
	})
	TokensConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authmail_tokens_consumed_total",
		Help: "Login tokens successfully consumed.",
	})
	ConsumeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authmail_consume_failures_total",
		Help: "Failed consume attempts by reason.",
	}, []string{"reason"})
	DeliveryOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authmail_delivery_total",
		Help: "Login email delivery attempts by outcome.",
	}, []string{"outcome"})
)
