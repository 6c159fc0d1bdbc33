// internal/appconfig/appconfig.go
// Package appconfig manages loading and interpreting application configuration.
package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultConfigPath is the default path to the application's configuration file.
	DefaultConfigPath = "config.yaml"
	// KeyDelimiter separates nested keys. Model names routinely contain dots (gpt-4.1),
	// so viper's default "." cannot be used.
	KeyDelimiter = "::"

	defaultDelaySeconds   = 1.0
	defaultJudgeWeight    = 0.5
	defaultDeepEvalWeight = 0.5
	defaultPromptsFile    = "evals/default.json"
	defaultResultsDir     = "results"
	defaultDashboardPath  = "docs/dashboard.html"
	defaultChecker        = "heuristic"
	defaultParallel       = 1
	defaultRequestTimeout = 120 * time.Second

	// StorageFile keeps one JSON document per model on the local filesystem.
	StorageFile = "file"
	// StorageS3 keeps one JSON object per model in an S3-compatible bucket.
	StorageS3 = "s3"
)

// ErrConfig marks configuration problems that must abort a command before any state changes.
var ErrConfig = errors.New("invalid configuration")

// Config represents the top-level application configuration.
type Config struct {
	Models     map[string]ModelConfig `mapstructure:"models" json:"models"`
	Judge      JudgeConfig            `mapstructure:"judge" json:"judge"`
	DeepEval   DeepEvalConfig         `mapstructure:"deepeval" json:"deepeval"`
	Composite  CompositeConfig        `mapstructure:"composite" json:"composite"`
	Eval       EvalConfig             `mapstructure:"eval" json:"eval"`
	Storage    StorageConfig          `mapstructure:"storage" json:"storage"`
	Report     ReportConfig           `mapstructure:"report" json:"report"`
	Checker    string                 `mapstructure:"checker" json:"checker,omitempty"`
	Debug      bool                   `mapstructure:"debug" json:"debug"`
	LogFile    string                 `mapstructure:"logFile" json:"logFile,omitempty"`
	ConfigPath string                 `mapstructure:"-" json:"-"`
}

// ModelConfig describes how to reach one model.
type ModelConfig struct {
	Provider       string         `mapstructure:"provider" json:"provider"`
	Model          string         `mapstructure:"model" json:"model"`
	APIKeyEnv      string         `mapstructure:"api_key_env" json:"api_key_env,omitempty"`
	BaseURL        string         `mapstructure:"base_url" json:"base_url,omitempty"`
	Region         string         `mapstructure:"region" json:"region,omitempty"`
	TimeoutSeconds int            `mapstructure:"timeout" json:"timeout,omitempty"`
	Params         map[string]any `mapstructure:"params" json:"params,omitempty"`
}

// JudgeConfig names the model used as the LLM judge. The model must also appear under models.
type JudgeConfig struct {
	Model  string         `mapstructure:"model" json:"model,omitempty"`
	Params map[string]any `mapstructure:"params" json:"params,omitempty"`
}

// DeepEvalConfig controls the secondary metric scorer.
type DeepEvalConfig struct {
	Enabled bool     `mapstructure:"enabled" json:"enabled"`
	Metrics []string `mapstructure:"metrics" json:"metrics,omitempty"`
	// Model overrides the evaluator model; the judge model is used when empty.
	Model string `mapstructure:"model" json:"model,omitempty"`
}

// CompositeConfig holds the weights of the composite score.
type CompositeConfig struct {
	JudgeWeight    float64 `mapstructure:"judge_weight" json:"judge_weight"`
	DeepEvalWeight float64 `mapstructure:"deepeval_weight" json:"deepeval_weight"`
}

// EvalConfig holds evaluation pacing and inputs.
type EvalConfig struct {
	DelayBetweenCalls float64 `mapstructure:"delay_between_calls" json:"delay_between_calls"`
	PromptsFile       string  `mapstructure:"prompts_file" json:"prompts_file,omitempty"`
	Parallel          int     `mapstructure:"parallel" json:"parallel,omitempty"`
}

// StorageConfig selects where run histories are persisted.
type StorageConfig struct {
	Backend    string `mapstructure:"backend" json:"backend,omitempty"`
	ResultsDir string `mapstructure:"results_dir" json:"results_dir,omitempty"`
	Bucket     string `mapstructure:"bucket" json:"bucket,omitempty"`
	Prefix     string `mapstructure:"prefix" json:"prefix,omitempty"`
	Region     string `mapstructure:"region" json:"region,omitempty"`
	Endpoint   string `mapstructure:"endpoint" json:"endpoint,omitempty"`
}

// ReportConfig controls generated reports.
type ReportConfig struct {
	DashboardPath string `mapstructure:"dashboard_path" json:"dashboard_path,omitempty"`
}

// NewViper returns a viper instance with the application's key delimiter, defaults and
// environment overrides (LLMEVAL_EVAL_DELAY_BETWEEN_CALLS and friends).
func NewViper() *viper.Viper {
	v := viper.NewWithOptions(viper.KeyDelimiter(KeyDelimiter))
	v.SetConfigType("yaml")
	v.SetEnvPrefix("LLMEVAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(KeyDelimiter, "_"))
	v.AutomaticEnv()

	v.SetDefault("composite::judge_weight", defaultJudgeWeight)
	v.SetDefault("composite::deepeval_weight", defaultDeepEvalWeight)
	v.SetDefault("eval::delay_between_calls", defaultDelaySeconds)
	v.SetDefault("eval::prompts_file", defaultPromptsFile)
	v.SetDefault("eval::parallel", defaultParallel)
	v.SetDefault("storage::backend", StorageFile)
	v.SetDefault("storage::results_dir", defaultResultsDir)
	v.SetDefault("report::dashboard_path", defaultDashboardPath)
	v.SetDefault("checker", defaultChecker)
	return v
}

// Default returns the configuration used when no config file is present.
func Default() Config {
	cfg, _ := Decode(NewViper())
	return cfg
}

// Load reads and validates the configuration at path.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}
	v := NewViper()
	v.SetConfigFile(path)
	if err := ReadInConfig(v); err != nil {
		return Config{}, err
	}
	cfg, err := Decode(v)
	if err != nil {
		return Config{}, err
	}
	cfg.ConfigPath = path
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ReadInConfig reads the configured file, reporting a missing file as fs.ErrNotExist.
func ReadInConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file %q: %w", v.ConfigFileUsed(), fs.ErrNotExist)
		}
		return fmt.Errorf("could not read config file %q: %w", v.ConfigFileUsed(), err)
	}
	return nil
}

// Decode unmarshals the viper state into a Config.
func Decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate reports configuration errors that are independent of the command being run.
func (c Config) Validate() error {
	if c.Composite.JudgeWeight < 0 || c.Composite.DeepEvalWeight < 0 {
		return fmt.Errorf("%w: composite weights must not be negative", ErrConfig)
	}
	if c.Eval.DelayBetweenCalls < 0 {
		return fmt.Errorf("%w: eval.delay_between_calls must not be negative", ErrConfig)
	}
	switch c.StorageBackend() {
	case StorageFile:
	case StorageS3:
		if strings.TrimSpace(c.Storage.Bucket) == "" {
			return fmt.Errorf("%w: storage.bucket is required for the s3 backend", ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrConfig, c.Storage.Backend)
	}
	for _, name := range c.ModelNames() {
		m := c.Models[name]
		if strings.TrimSpace(m.Provider) == "" {
			return fmt.Errorf("%w: model %q has no provider", ErrConfig, name)
		}
		if strings.TrimSpace(m.Model) == "" {
			return fmt.Errorf("%w: model %q has no model id", ErrConfig, name)
		}
	}
	return nil
}

// ModelNames returns the configured model names in alphabetical order.
func (c Config) ModelNames() []string {
	names := make([]string, 0, len(c.Models))
	for name := range c.Models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Model returns the configuration for name. Viper lowercases map keys, so lookups fall
// back to a case-insensitive match.
func (c Config) Model(name string) (ModelConfig, error) {
	if m, ok := c.Models[name]; ok {
		return m, nil
	}
	if m, ok := c.Models[strings.ToLower(name)]; ok {
		return m, nil
	}
	available := c.ModelNames()
	if len(available) == 0 {
		return ModelConfig{}, fmt.Errorf("%w: model %q not configured (no models in config)", ErrConfig, name)
	}
	return ModelConfig{}, fmt.Errorf("%w: model %q not configured (available: %s)", ErrConfig, name, strings.Join(available, ", "))
}

// JudgeModel returns the configured judge name and its model configuration.
func (c Config) JudgeModel() (string, ModelConfig, error) {
	name := strings.TrimSpace(c.Judge.Model)
	if name == "" {
		return "", ModelConfig{}, fmt.Errorf("%w: no judge model configured", ErrConfig)
	}
	m, err := c.Model(name)
	if err != nil {
		return "", ModelConfig{}, fmt.Errorf("judge: %w", err)
	}
	return name, m, nil
}

// EvaluatorModel returns the model that scores secondary metrics.
func (c Config) EvaluatorModel() (string, ModelConfig, error) {
	if name := strings.TrimSpace(c.DeepEval.Model); name != "" {
		m, err := c.Model(name)
		if err != nil {
			return "", ModelConfig{}, fmt.Errorf("deepeval: %w", err)
		}
		return name, m, nil
	}
	return c.JudgeModel()
}

// Delay returns the pause between consecutive provider calls.
func (c Config) Delay() time.Duration {
	if c.Eval.DelayBetweenCalls <= 0 {
		return 0
	}
	return time.Duration(c.Eval.DelayBetweenCalls * float64(time.Second))
}

// Weights returns the composite weights. Two zero weights fall back to the defaults.
func (c Config) Weights() (judge, secondary float64) {
	if c.Composite.JudgeWeight == 0 && c.Composite.DeepEvalWeight == 0 {
		return defaultJudgeWeight, defaultDeepEvalWeight
	}
	return c.Composite.JudgeWeight, c.Composite.DeepEvalWeight
}

// Parallelism returns how many models may be re-scored at once.
func (c Config) Parallelism() int {
	if c.Eval.Parallel <= 0 {
		return defaultParallel
	}
	return c.Eval.Parallel
}

// PromptsFile returns the prompt catalog path.
func (c Config) PromptsFile() string {
	if p := strings.TrimSpace(c.Eval.PromptsFile); p != "" {
		return p
	}
	return defaultPromptsFile
}

// StorageBackend returns the normalized storage backend name.
func (c Config) StorageBackend() string {
	if b := strings.ToLower(strings.TrimSpace(c.Storage.Backend)); b != "" {
		return b
	}
	return StorageFile
}

// ResultsDir returns the directory holding per-model result files.
func (c Config) ResultsDir() string {
	if d := strings.TrimSpace(c.Storage.ResultsDir); d != "" {
		return d
	}
	return defaultResultsDir
}

// DashboardPath returns where the HTML dashboard is written.
func (c Config) DashboardPath() string {
	if p := strings.TrimSpace(c.Report.DashboardPath); p != "" {
		return p
	}
	return defaultDashboardPath
}

// CheckerName returns the registered automated checker to use.
func (c Config) CheckerName() string {
	if n := strings.TrimSpace(c.Checker); n != "" {
		return n
	}
	return defaultChecker
}

// LogFilePath returns the path to the application log file, applying a default if not set.
func (c Config) LogFilePath() string {
	if path := c.LogFile; strings.TrimSpace(path) != "" {
		return path
	}
	return "llmeval.log"
}

// RequestTimeout returns the HTTP timeout for a model, falling back to the default.
func (m ModelConfig) RequestTimeout() time.Duration {
	if m.TimeoutSeconds <= 0 {
		return defaultRequestTimeout
	}
	return time.Duration(m.TimeoutSeconds) * time.Second
}
