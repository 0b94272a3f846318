package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cartOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cart_operations_total",
		Help: "Cart operations by outcome.",
	},
	[]string{"operation", "result"},
)

func recordOperation(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	cartOperationsTotal.WithLabelValues(operation, result).Inc()
}
