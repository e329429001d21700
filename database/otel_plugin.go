package database

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	instrumentationName = "github.com/KOMKZ/go-yogan-cache/database"
	spanInstanceKey     = "otel:span"
)

// OtelPlugin gorm plugin that opens one client span per statement
type OtelPlugin struct {
	tracer    trace.Tracer
	traceSQL  bool
	sqlMaxLen int
}

// NewOtelPlugin uses the global TracerProvider when tp is nil
func NewOtelPlugin(tp trace.TracerProvider) *OtelPlugin {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &OtelPlugin{
		tracer:    tp.Tracer(instrumentationName),
		sqlMaxLen: 1000,
	}
}

// WithTraceSQL records SQL text on spans
func (p *OtelPlugin) WithTraceSQL(enabled bool) *OtelPlugin {
	p.traceSQL = enabled
	return p
}

// WithSQLMaxLen caps recorded SQL length
func (p *OtelPlugin) WithSQLMaxLen(maxLen int) *OtelPlugin {
	if maxLen > 0 {
		p.sqlMaxLen = maxLen
	}
	return p
}

func (p *OtelPlugin) Name() string {
	return "otel"
}

// Initialize registers before/after callbacks on every gorm processor
func (p *OtelPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		name string
		reg  func(before, after func(*gorm.DB)) error
	}{
		{"create", func(b, a func(*gorm.DB)) error {
			if err := cb.Create().Before("gorm:create").Register("otel:before_create", b); err != nil {
				return err
			}
			return cb.Create().After("gorm:create").Register("otel:after_create", a)
		}},
		{"query", func(b, a func(*gorm.DB)) error {
			if err := cb.Query().Before("gorm:query").Register("otel:before_query", b); err != nil {
				return err
			}
			return cb.Query().After("gorm:query").Register("otel:after_query", a)
		}},
		{"update", func(b, a func(*gorm.DB)) error {
			if err := cb.Update().Before("gorm:update").Register("otel:before_update", b); err != nil {
				return err
			}
			return cb.Update().After("gorm:update").Register("otel:after_update", a)
		}},
		{"delete", func(b, a func(*gorm.DB)) error {
			if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", b); err != nil {
				return err
			}
			return cb.Delete().After("gorm:delete").Register("otel:after_delete", a)
		}},
		{"row", func(b, a func(*gorm.DB)) error {
			if err := cb.Row().Before("gorm:row").Register("otel:before_row", b); err != nil {
				return err
			}
			return cb.Row().After("gorm:row").Register("otel:after_row", a)
		}},
		{"raw", func(b, a func(*gorm.DB)) error {
			if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", b); err != nil {
				return err
			}
			return cb.Raw().After("gorm:raw").Register("otel:after_raw", a)
		}},
	}
	for _, h := range hooks {
		if err := h.reg(p.before(h.name), p.after); err != nil {
			return err
		}
	}
	return nil
}

func (p *OtelPlugin) before(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		name := "gorm." + operation
		if db.Statement.Table != "" {
			name += " " + db.Statement.Table
		}
		ctx, span := p.tracer.Start(ctx, name,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("db.system", db.Dialector.Name()),
				attribute.String("db.operation", operation),
				attribute.String("db.table", db.Statement.Table),
			),
		)
		db.Statement.Context = ctx
		db.InstanceSet(spanInstanceKey, span)
	}
}

func (p *OtelPlugin) after(db *gorm.DB) {
	v, ok := db.InstanceGet(spanInstanceKey)
	if !ok {
		return
	}
	span, ok := v.(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	if p.traceSQL {
		if sql := db.Statement.SQL.String(); sql != "" {
			if len(sql) > p.sqlMaxLen {
				sql = sql[:p.sqlMaxLen] + "..."
			}
			span.SetAttributes(attribute.String("db.statement", strings.TrimSpace(sql)))
		}
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))

	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.RecordError(db.Error)
		span.SetStatus(codes.Error, db.Error.Error())
	}
}
