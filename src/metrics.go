package softmodem

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const meterName = "github.com/doismellburning/softmodem"

// Metrics holds the modem's counters. All fields are safe for concurrent
// use.
type Metrics struct {
	// RXBytes counts bytes decoded and passed to the endpoint.
	RXBytes metric.Int64Counter

	// TXBytes counts bytes accepted from the endpoint for sending.
	TXBytes metric.Int64Counter

	// RXDropped counts decoded bytes discarded because the endpoint
	// could not keep up.
	RXDropped metric.Int64Counter

	// CarrierTransitions counts carrier detect changes. Use with
	//   attribute.String("state", "up"|"down")
	CarrierTransitions metric.Int64Counter

	// TXIdleSamples counts line samples sent as idle Mark padding.
	TXIdleSamples metric.Int64Counter

	// FramingErrors counts frames dropped for a bad stop bit.
	FramingErrors metric.Int64Counter
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	var m = mp.Meter(meterName)
	var met = &Metrics{}
	var err error

	if met.RXBytes, err = m.Int64Counter("softmodem.rx.bytes",
		metric.WithDescription("Bytes received and decoded."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}

	if met.TXBytes, err = m.Int64Counter("softmodem.tx.bytes",
		metric.WithDescription("Bytes queued for transmission."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}

	if met.RXDropped, err = m.Int64Counter("softmodem.rx.dropped",
		metric.WithDescription("Decoded bytes dropped because the endpoint was not reading."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}

	if met.CarrierTransitions, err = m.Int64Counter("softmodem.carrier.transitions",
		metric.WithDescription("Carrier detect state changes by new state."),
	); err != nil {
		return nil, err
	}

	if met.TXIdleSamples, err = m.Int64Counter("softmodem.tx.idle_samples",
		metric.WithDescription("Line samples transmitted as idle Mark."),
	); err != nil {
		return nil, err
	}

	if met.FramingErrors, err = m.Int64Counter("softmodem.framing.errors",
		metric.WithDescription("Received frames discarded for a missing stop bit."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordCarrier counts one carrier transition.
func (m *Metrics) RecordCarrier(ctx context.Context, present bool) {
	var state = "down"
	if present {
		state = "up"
	}

	m.CarrierTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state)))
}

// InitMetrics installs an SDK meter provider with a Prometheus exporter as
// the global provider. Call Shutdown on the result before exiting.
func InitMetrics(version string) (*sdkmetric.MeterProvider, error) {
	var res, resErr = resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", "softmodem"),
			attribute.String("service.version", version),
		),
	)
	if resErr != nil {
		return nil, resErr
	}

	var exp, expErr = promexporter.New()
	if expErr != nil {
		return nil, expErr
	}

	var mp = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exp),
	)
	otel.SetMeterProvider(mp)

	return mp, nil
}

// ServeMetrics serves /metrics on addr until ctx is cancelled.
func ServeMetrics(ctx context.Context, addr string) error {
	var mux = http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	var srv = &http.Server{ //nolint:exhaustruct
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()

		var shutdownCtx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		srv.Shutdown(shutdownCtx)
	}()

	var err = srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}
