// internal/appconfig/show.go
package appconfig

import (
	"fmt"
	"io"
	"strings"

	"github.com/k0kubun/pp"
)

// ShowConfig prints the current configuration summary.
func ShowConfig(out io.Writer, cfg Config) {
	if cfg.ConfigPath == "" {
		fmt.Fprintln(out, "No config file loaded (using defaults).")
	} else {
		fmt.Fprintf(out, "Config file: %s\n\n", cfg.ConfigPath)
	}

	judgeW, secondaryW := cfg.Weights()
	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintf(out, "  Debug:           %v\n", cfg.Debug)
	fmt.Fprintf(out, "  Log File:        %s\n", cfg.LogFilePath())
	fmt.Fprintf(out, "  Prompts File:    %s\n", cfg.PromptsFile())
	fmt.Fprintf(out, "  Checker:         %s\n", cfg.CheckerName())
	fmt.Fprintf(out, "  Delay:           %s\n", cfg.Delay())
	fmt.Fprintf(out, "  Parallel:        %d\n", cfg.Parallelism())
	fmt.Fprintf(out, "  Judge:           %s\n", valueOrNone(cfg.Judge.Model))
	fmt.Fprintf(out, "  DeepEval:        %v %s\n", cfg.DeepEval.Enabled, strings.Join(cfg.DeepEval.Metrics, ","))
	fmt.Fprintf(out, "  Weights:         judge=%.2f deepeval=%.2f\n", judgeW, secondaryW)
	fmt.Fprintf(out, "  Storage:         %s\n", cfg.StorageBackend())
	if cfg.StorageBackend() == StorageS3 {
		fmt.Fprintf(out, "  Bucket:          s3://%s/%s\n", cfg.Storage.Bucket, cfg.Storage.Prefix)
	} else {
		fmt.Fprintf(out, "  Results Dir:     %s\n", cfg.ResultsDir())
	}
	fmt.Fprintf(out, "  Dashboard:       %s\n", cfg.DashboardPath())

	names := cfg.ModelNames()
	fmt.Fprintf(out, "\nModels (%d):\n", len(names))
	for _, name := range names {
		m := cfg.Models[name]
		fmt.Fprintf(out, "  %-28s %-18s %s\n", name, m.Provider, m.Model)
	}
}

// ShowRaw dumps the decoded configuration structure.
func ShowRaw(out io.Writer, cfg Config) {
	pp.ColoringEnabled = false
	_, _ = pp.Fprintln(out, cfg)
}

func valueOrNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}
