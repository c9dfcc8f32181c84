package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/ragops/harvester/internal/progress"
)

// LogSink writes progress events to a zap logger.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink builds a LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs the event at a level matching its stage.
func (s *LogSink) Consume(_ context.Context, evt progress.Event) error {
	fields := []zap.Field{
		zap.String("crawl_id", evt.CrawlID.String()),
		zap.String("stage", string(evt.Stage)),
		zap.Int("processed", evt.Processed),
		zap.Int("succeeded", evt.Succeeded),
		zap.Int("queue_depth", evt.QueueDepth),
		zap.Int("concurrency_limit", evt.Limit),
	}
	if evt.Note != "" {
		fields = append(fields, zap.String("note", evt.Note))
	}
	switch evt.Stage {
	case progress.StageCrawlStall:
		s.logger.Warn("crawl progress", fields...)
	case progress.StageBatchDone:
		s.logger.Debug("crawl progress", fields...)
	default:
		s.logger.Info("crawl progress", fields...)
	}
	return nil
}

// Close flushes the logger.
func (s *LogSink) Close(_ context.Context) error {
	_ = s.logger.Sync()
	return nil
}
