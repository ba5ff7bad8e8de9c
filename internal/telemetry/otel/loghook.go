package otel

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const logScope = "authentico/logrus"

// LogHook forwards logrus entries to an OTel LoggerProvider as log records. Best-effort; it never fails the log call.
type LogHook struct {
	logger otellog.Logger
	levels []logrus.Level
}

// NewLogHook returns a hook emitting entries at minLevel or more severe through provider.
// If provider is nil, returns nil.
func NewLogHook(provider *sdklog.LoggerProvider, minLevel logrus.Level) *LogHook {
	if provider == nil {
		return nil
	}
	levels := make([]logrus.Level, 0, len(logrus.AllLevels))
	for _, l := range logrus.AllLevels {
		if l <= minLevel {
			levels = append(levels, l)
		}
	}
	return &LogHook{logger: provider.Logger(logScope), levels: levels}
}

func (h *LogHook) Levels() []logrus.Level {
	return h.levels
}

// Fire converts the entry to an OTel record. Entry fields become string attributes; errors use their message.
func (h *LogHook) Fire(entry *logrus.Entry) error {
	rec := otellog.Record{}
	rec.SetTimestamp(entry.Time)
	rec.SetObservedTimestamp(entry.Time)
	rec.SetSeverity(severity(entry.Level))
	rec.SetSeverityText(entry.Level.String())
	rec.SetBody(otellog.StringValue(entry.Message))
	for k, v := range entry.Data {
		if err, ok := v.(error); ok {
			rec.AddAttributes(otellog.String(k, err.Error()))
			continue
		}
		rec.AddAttributes(otellog.String(k, fmt.Sprint(v)))
	}
	ctx := entry.Context
	if ctx == nil {
		ctx = context.Background()
	}
	h.logger.Emit(ctx, rec)
	return nil
}

func severity(l logrus.Level) otellog.Severity {
	switch l {
	case logrus.TraceLevel:
		return otellog.SeverityTrace
	case logrus.DebugLevel:
		return otellog.SeverityDebug
	case logrus.InfoLevel:
		return otellog.SeverityInfo
	case logrus.WarnLevel:
		return otellog.SeverityWarn
	case logrus.ErrorLevel:
		return otellog.SeverityError
	case logrus.FatalLevel:
		return otellog.SeverityFatal
	default:
		return otellog.SeverityFatal4
	}
}
