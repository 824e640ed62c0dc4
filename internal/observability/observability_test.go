package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestClassifyStoreErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"unique", &pgconn.PgError{Code: "23505"}, "unique_violation"},
		{"other pg", fmt.Errorf("wrap: %w", &pgconn.PgError{Code: "42P01"}), "pg_42P01"},
		{"deadline", context.DeadlineExceeded, "timeout"},
		{"conn", errors.New("dial tcp: connection refused"), "connection"},
		{"unknown", errors.New("boom"), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyStoreErr(tt.err); got != tt.want {
				t.Fatalf("classifyStoreErr = %q want %q", got, tt.want)
			}
		})
	}
}

func TestObserveStoreCountsErrors(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())

	_ = p.ObserveStore("session_load", func() error { return nil })
	err := p.ObserveStore("session_save", func() error { return context.DeadlineExceeded })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error must be passed through, got %v", err)
	}

	if got := testutil.ToFloat64(p.StoreErrors.WithLabelValues("session_save", "timeout")); got != 1 {
		t.Fatalf("expected one timeout error, got %v", got)
	}
}

func TestGinMiddlewareRecordsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	p := NewProm(prometheus.NewRegistry())

	r := gin.New()
	r.Use(p.GinHandleMiddleware())
	r.GET("/admin/brands/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/brands/42", nil))

	if got := testutil.ToFloat64(p.RequestsTotal.WithLabelValues("GET", "/admin/brands/:id", "204")); got != 1 {
		t.Fatalf("expected request counted under route template, got %v", got)
	}
}

func TestLoggerAddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger("dev", &buf)

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	log.InfoContext(ctx, "hello")
	span.End()

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if rec["trace_id"] != span.SpanContext().TraceID().String() {
		t.Fatalf("missing trace id: %v", rec)
	}
}

func TestLoggerTagsSession(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger("prod", &buf)

	ctx := WithSessionID(context.Background(), "0f3a9c2e-1111-2222-3333-444455556666")
	log.InfoContext(ctx, "page rendered")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if rec["session"] != "0f3a9c2e" {
		t.Fatalf("session tag = %v, want the short id", rec["session"])
	}
	if _, ok := rec["trace_id"]; ok {
		t.Fatal("no span, no trace id")
	}
}

func TestTracerSampler(t *testing.T) {
	cases := []struct {
		ratio float64
		want  string
	}{
		{1, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tc := range cases {
		got := TracerConfig{SampleRatio: tc.ratio}.Sampler().Description()
		if !strings.Contains(got, tc.want) {
			t.Fatalf("ratio %v: sampler %q, want it to contain %q", tc.ratio, got, tc.want)
		}
	}
}
