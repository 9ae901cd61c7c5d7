package main

import (
	"encoding/json"
	"io"

	"go.uber.org/zap"

	"github.com/sells-group/account-intel/internal/batch"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func logSummary(s *batch.Summary) {
	if s == nil {
		return
	}
	fields := []zap.Field{
		zap.String("kind", string(s.Kind)),
		zap.Int("total", s.Total),
		zap.Int("successful", s.Successful),
		zap.Int("failed", s.Failed),
		zap.Int("no_activity", s.NoActivity),
	}
	if s.Failed > 0 {
		zap.L().Warn("batch finished with failures", fields...)
		return
	}
	zap.L().Info("batch finished", fields...)
}
