package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

var (
	ordersPlaced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_orders_placed_total",
			Help: "Orders placed, by payment method",
		},
		[]string{"payment_method"},
	)

	orderAmount = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_order_amount",
			Help:    "Order total amount",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 5000},
		},
		[]string{"payment_method"},
	)

	checkoutFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_checkout_failures_total",
			Help: "Rejected checkouts and payment attempts, by error code",
		},
		[]string{"reason"},
	)

	ordersPaid = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_orders_paid_total",
			Help: "Orders marked as paid, by source",
		},
		[]string{"source"},
	)
)

// usecase.CheckoutRecorder の実装
type CheckoutRecorder struct{}

func NewCheckoutRecorder() CheckoutRecorder {
	return CheckoutRecorder{}
}

func (CheckoutRecorder) OrderPlaced(paymentMethod string, total decimal.Decimal) {
	ordersPlaced.WithLabelValues(paymentMethod).Inc()
	orderAmount.WithLabelValues(paymentMethod).Observe(total.InexactFloat64())
}

func (CheckoutRecorder) CheckoutFailed(reason string) {
	checkoutFailures.WithLabelValues(reason).Inc()
}

func (CheckoutRecorder) OrderPaid(source string) {
	ordersPaid.WithLabelValues(source).Inc()
}
