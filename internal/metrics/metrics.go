package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

var (
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "customers_operations_total",
			Help: "Customer API operations by name and outcome",
		},
		[]string{"op", "outcome"}, // list|create|show|update|delete|toggle_optin , ok|invalid|not_found|conflict|error
	)
)

const (
	OutcomeOK       = "ok"
	OutcomeInvalid  = "invalid"
	OutcomeNotFound = "not_found"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		OperationsTotal,
	)
}

// InitMeterProvider installs a global OpenTelemetry meter provider that is
// scraped through r, so instrumented SQL pool stats show up on /metrics.
func InitMeterProvider(r prometheus.Registerer) (*sdkmetric.MeterProvider, error) {
	exp, err := otelprom.New(otelprom.WithRegisterer(r))
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp))
	otel.SetMeterProvider(mp)
	return mp, nil
}
