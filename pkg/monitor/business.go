package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics 定义业务监控指标
type BusinessMetrics struct {
	DepositSettledTotal      *prometheus.CounterVec
	DepositAmountTotal       *prometheus.CounterVec
	WithdrawAmountTotal      *prometheus.CounterVec
	WithdrawRejectedTotal    *prometheus.CounterVec
	NotificationDroppedTotal prometheus.Counter
	DuplicateDeliveryTotal   prometheus.Counter
	SweepJobDuration         prometheus.Histogram
	PendingClampSkippedTotal prometheus.Counter
	NegativeBalanceTotal     prometheus.Counter
}

// Global Metrics Instance
var Business *BusinessMetrics

// InitBusinessMetrics 初始化业务指标
func InitBusinessMetrics() {
	Business = &BusinessMetrics{
		DepositSettledTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custody_deposit_settled_total",
			Help: "Number of deposit notifications settled exactly once",
		}, []string{"network"}),
		DepositAmountTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custody_deposit_amount_total",
			Help: "The total amount credited by deposits",
		}, []string{"network"}),
		WithdrawAmountTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custody_withdraw_amount_total",
			Help: "The total amount debited by withdrawals, fees included",
		}, []string{"network"}),
		WithdrawRejectedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custody_withdraw_rejected_total",
			Help: "Withdrawal requests rejected by admission checks",
		}, []string{"reason"}),
		NotificationDroppedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custody_notification_dropped_total",
			Help: "Inbound events dropped by the classifier",
		}),
		DuplicateDeliveryTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custody_duplicate_delivery_total",
			Help: "Redelivered notifications that hit the settlement idempotency guard",
		}),
		SweepJobDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "custody_sweep_job_duration_seconds",
			Help:    "Duration of confirmation sweep runs",
			Buckets: prometheus.DefBuckets,
		}),
		PendingClampSkippedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custody_pending_clamp_skipped_total",
			Help: "Pending-balance decrements skipped by the epsilon floor",
		}),
		NegativeBalanceTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custody_negative_balance_total",
			Help: "Withdrawal debits that left a confirmed balance negative",
		}),
	}
}
