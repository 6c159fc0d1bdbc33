// internal/logging/logging.go
// Package logging routes diagnostic output to the run log. Operator-facing progress is
// printed by the commands themselves; this package records events and provider traffic.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mwiater/llmeval/internal/util"
)

// maxPayloadRunes caps how much of a request or response body is written per log line.
const maxPayloadRunes = 4000

var (
	mu      sync.Mutex
	logFile *os.File
)

// Init directs the standard logger to logPath. When echo is set, log lines are also
// written to stdout. With no path and no echo, logging is discarded.
func Init(logPath string, echo bool) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	var writers []io.Writer
	if echo {
		writers = append(writers, os.Stdout)
	}

	if logPath != "" {
		if dir := filepath.Dir(logPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		logFile = file
		writers = append(writers, logFile)
	}

	if len(writers) == 0 {
		log.SetOutput(io.Discard)
		return nil
	}
	log.SetOutput(io.MultiWriter(writers...))
	return nil
}

// Close releases the log file and restores stderr output.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	log.SetOutput(os.Stderr)
	err := logFile.Close()
	logFile = nil
	return err
}

func LogEvent(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Println(msg)
}

// LogRequest records one provider exchange, e.g. LogRequest("LLMEVAL->LLM", "openai", "gpt-4o", body).
func LogRequest(direction, provider, model string, payload any) {
	msg := buildRequestMessage(direction, provider, model, payload)
	log.Println(msg)
}

func buildRequestMessage(direction, provider, model string, payload any) string {
	dir := strings.ToUpper(strings.TrimSpace(direction))
	providerValue := strings.TrimSpace(provider)
	if providerValue == "" {
		providerValue = "unknown"
	}
	modelValue := strings.TrimSpace(model)
	if modelValue == "" {
		modelValue = "unknown"
	}
	parts := []string{
		fmt.Sprintf("[%s]", dir),
		fmt.Sprintf("provider=%s", providerValue),
		fmt.Sprintf("model=%s", modelValue),
		fmt.Sprintf("payload=%s", util.TruncateRunes(formatPayload(payload), maxPayloadRunes)),
	}
	return strings.Join(parts, " ")
}

func formatPayload(payload any) string {
	switch v := payload.(type) {
	case nil:
		return "null"
	case string:
		if strings.TrimSpace(v) == "" {
			return `""`
		}
		return v
	case []byte:
		if len(v) == 0 {
			return "[]"
		}
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
