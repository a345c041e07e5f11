// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

// HCLog returns an hclog.Logger whose output is re-emitted through slog,
// for libraries such as go-plugin that only speak hclog.
func HCLog(name string, l *slog.Logger) hclog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:        name,
		Level:       hclogLevel(l),
		Output:      &slogWriter{logger: l},
		DisableTime: true,
	})
}

func hclogLevel(l *slog.Logger) hclog.Level {
	ctx := context.Background()
	switch {
	case l.Enabled(ctx, slog.LevelDebug):
		return hclog.Debug
	case l.Enabled(ctx, slog.LevelInfo):
		return hclog.Info
	case l.Enabled(ctx, slog.LevelWarn):
		return hclog.Warn
	default:
		return hclog.Error
	}
}

// slogWriter parses hclog's "[LEVEL] name: message" lines.
type slogWriter struct {
	logger *slog.Logger
}

func (w *slogWriter) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(bytes.TrimRight(p, "\n"), []byte{'\n'}) {
		w.emit(string(line))
	}
	return len(p), nil
}

func (w *slogWriter) emit(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	level := slog.LevelInfo
	if strings.HasPrefix(line, "[") {
		if end := strings.IndexByte(line, ']'); end > 0 {
			level = parseHCLevel(line[1:end])
			line = strings.TrimSpace(line[end+1:])
		}
	}

	// A hand-built record has no PC, so the module filter lets it through.
	ctx := context.Background()
	if !w.logger.Enabled(ctx, level) {
		return
	}
	r := slog.NewRecord(time.Now(), level, line, 0)
	_ = w.logger.Handler().Handle(ctx, r)
}

func parseHCLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE", "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
