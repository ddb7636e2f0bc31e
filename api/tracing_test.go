package api

import (
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/warp/vip-engine/vip"
)

var (
	spanRecorderOnce sync.Once
	spanRecorder     *tracetest.SpanRecorder
)

// recordSpans installs one recording provider for the whole test binary.
// Tests pick their spans out by trace id.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	spanRecorderOnce.Do(func() {
		spanRecorder = tracetest.NewSpanRecorder()
		otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spanRecorder)))
	})
	return spanRecorder
}

func spansForTrace(sr *tracetest.SpanRecorder, traceID string) map[string]sdktrace.ReadOnlySpan {
	spans := make(map[string]sdktrace.ReadOnlySpan)
	for _, s := range sr.Ended() {
		if s.SpanContext().TraceID().String() == traceID {
			spans[s.Name()] = s
		}
	}
	return spans
}

func TestTracing_RankingSpans(t *testing.T) {
	// GIVEN: A recording tracer provider
	sr := recordSpans(t)
	env := newTestEnv(t)
	env.addClient(t, vip.Client{ID: "cli-a", Name: "A"})
	env.addOrder(t, "o1", "cli-a", testAnchor, "50", vip.OrderProcessed)

	// WHEN: Requesting the leaderboard
	rec := env.do(t, http.MethodGet, "/api/ranking?top=3", nil)

	// THEN: The response names the trace holding the request and ranking spans
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	traceID := rec.Header().Get(TraceIDHeader)
	require.Len(t, traceID, 32)

	spans := spansForTrace(sr, traceID)
	request, ok := spans["GET /api/ranking"]
	require.True(t, ok, "request span missing")
	rank, ok := spans["vip.Rank"]
	require.True(t, ok, "ranking span missing")
	assert.Equal(t, request.SpanContext().SpanID(), rank.Parent().SpanID())

	attrs := make(map[string]string)
	for _, kv := range rank.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "week", attrs["ranking.window"])
	assert.Equal(t, "2026-03-09", attrs["ranking.start"])
	assert.Equal(t, "3", attrs["ranking.top"])
}

func TestTracing_HistorySpan(t *testing.T) {
	sr := recordSpans(t)
	env := newTestEnv(t)
	env.addClient(t, vip.Client{ID: "cli-1", Name: "Ana"})

	rec := env.do(t, http.MethodGet, "/api/clients/cli-1/history?lookback=2", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	spans := spansForTrace(sr, rec.Header().Get(TraceIDHeader))
	history, ok := spans["vip.History"]
	require.True(t, ok, "history span missing")
	assert.True(t, history.Parent().IsValid())
}
