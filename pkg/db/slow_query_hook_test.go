package db

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"taskboard/pkg/config"
	"taskboard/pkg/metrics"
)

func TestSlowQueryTracer(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	tracer := NewSlowQueryTracer(zap.New(core), 50*time.Millisecond)

	clock := time.Unix(1_700_000_000, 0)
	tracer.now = func() time.Time { return clock }

	t.Run("fast query is not reported", func(t *testing.T) {
		ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
		clock = clock.Add(10 * time.Millisecond)
		tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})
		assert.Equal(t, 0, logs.Len())
	})

	t.Run("slow query is logged and counted with truncated sql", func(t *testing.T) {
		before := testutil.ToFloat64(metrics.DBSlowQueries)
		longSQL := "SELECT " + strings.Repeat("x", 300)

		ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: longSQL})
		clock = clock.Add(time.Second)
		tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})

		entries := logs.TakeAll()
		if assert.Len(t, entries, 1) {
			sql := entries[0].ContextMap()["sql"].(string)
			assert.Len(t, sql, maxLoggedSQL+3)
		}
		assert.Equal(t, before+1, testutil.ToFloat64(metrics.DBSlowQueries))
	})

	t.Run("missing start time is ignored", func(t *testing.T) {
		tracer.TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{})
		assert.Equal(t, 0, logs.Len())
	})
}

func TestDSN(t *testing.T) {
	cfg := config.DBConfig{Host: "h", Port: 5432, User: "u", Password: "p", Name: "tasks"}
	assert.Equal(t, "postgres://u:p@h:5432/tasks?sslmode=disable", DSN(cfg))

	cfg.SSLMode = "require"
	assert.Equal(t, "postgres://u:p@h:5432/tasks?sslmode=require", DSN(cfg))
}
