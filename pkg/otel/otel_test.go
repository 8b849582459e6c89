package otel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(Config{ServiceName: "millets-portal"}, "portal-1", zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	shutdown()

	_, span := StartSpan(context.Background(), "report.Build")
	defer span.End()
	assert.False(t, span.IsRecording())
}

func TestTransportPassesResponseThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewTransport(nil)}
	resp, err := client.Get(srv.URL + "/api/categories")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
}

func TestHeaderCarrierRoundTrip(t *testing.T) {
	prop := propagation.TraceContext{}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0xa1},
		SpanID:     trace.SpanID{0xb2},
		TraceFlags: trace.FlagsSampled,
	})
	headers := map[string]interface{}{"x-origin": "portal-1"}

	prop.Inject(trace.ContextWithSpanContext(context.Background(), sc), HeaderCarrier(headers))
	require.Contains(t, headers, "traceparent")
	assert.Equal(t, "portal-1", HeaderCarrier(headers).Get("x-origin"))

	got := trace.SpanContextFromContext(prop.Extract(context.Background(), HeaderCarrier(headers)))
	assert.Equal(t, sc.TraceID(), got.TraceID())
	assert.Equal(t, sc.SpanID(), got.SpanID())
	assert.True(t, got.IsRemote())
}
