package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical analysis defaults file.
const DefaultConfigPath = "config/analysis.defaults.json"

// Cache backends accepted by cache_backend.
const (
	CacheBackendFile   = "file"
	CacheBackendSQLite = "sqlite"
	CacheBackendNone   = "none"
)

// AnalysisConfig is the JSON configuration of the I-V analysis pipeline.
// Every field is optional; the Get* accessors supply defaults for omitted
// fields so partial files are safe.
type AnalysisConfig struct {
	// Curve fitting
	FitEnabled       *bool    `json:"fit_enabled,omitempty"`
	IscFitPoints     *int     `json:"isc_fit_points,omitempty"`
	VocFitPoints     *int     `json:"voc_fit_points,omitempty"`
	PmaxFitPoints    *int     `json:"pmax_fit_points,omitempty"`
	DiodeI0Seed      *float64 `json:"diode_i0_seed,omitempty"`
	DiodeVtSeed      *float64 `json:"diode_vt_seed,omitempty"`
	MaxFitIterations *int     `json:"max_fit_iterations,omitempty"`

	// Snapshot cache
	CacheBackend *string `json:"cache_backend,omitempty"` // file | sqlite | none
	CacheDBPath  *string `json:"cache_db_path,omitempty"`

	// Loading
	SkipBadTraces   *bool `json:"skip_bad_traces,omitempty"`
	LoadConcurrency *int  `json:"load_concurrency,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyAnalysisConfig returns an AnalysisConfig with all fields nil, which
// behaves as the built-in defaults.
func EmptyAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{}
}

// DefaultAnalysisConfig returns a config with every field set explicitly to
// its default value.
func DefaultAnalysisConfig() *AnalysisConfig {
	c := EmptyAnalysisConfig()
	return &AnalysisConfig{
		FitEnabled:       ptrBool(c.GetFitEnabled()),
		IscFitPoints:     ptrInt(c.GetIscFitPoints()),
		VocFitPoints:     ptrInt(c.GetVocFitPoints()),
		PmaxFitPoints:    ptrInt(c.GetPmaxFitPoints()),
		DiodeI0Seed:      ptrFloat64(c.GetDiodeI0Seed()),
		DiodeVtSeed:      ptrFloat64(c.GetDiodeVtSeed()),
		MaxFitIterations: ptrInt(c.GetMaxFitIterations()),
		CacheBackend:     ptrString(c.GetCacheBackend()),
		CacheDBPath:      ptrString(c.GetCacheDBPath()),
		SkipBadTraces:    ptrBool(c.GetSkipBadTraces()),
		LoadConcurrency:  ptrInt(c.GetLoadConcurrency()),
	}
}

// LoadAnalysisConfig loads an AnalysisConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyAnalysisConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *AnalysisConfig) Validate() error {
	for name, v := range map[string]*int{
		"isc_fit_points":  c.IscFitPoints,
		"voc_fit_points":  c.VocFitPoints,
		"pmax_fit_points": c.PmaxFitPoints,
	} {
		if v != nil && *v < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", name, *v)
		}
	}

	if c.DiodeI0Seed != nil && *c.DiodeI0Seed <= 0 {
		return fmt.Errorf("diode_i0_seed must be positive, got %g", *c.DiodeI0Seed)
	}
	if c.DiodeVtSeed != nil && *c.DiodeVtSeed <= 0 {
		return fmt.Errorf("diode_vt_seed must be positive, got %g", *c.DiodeVtSeed)
	}
	if c.MaxFitIterations != nil && *c.MaxFitIterations < 1 {
		return fmt.Errorf("max_fit_iterations must be at least 1, got %d", *c.MaxFitIterations)
	}

	if c.CacheBackend != nil {
		switch *c.CacheBackend {
		case CacheBackendFile, CacheBackendSQLite, CacheBackendNone:
		default:
			return fmt.Errorf("cache_backend must be one of file, sqlite, none; got %q", *c.CacheBackend)
		}
	}
	if c.GetCacheBackend() == CacheBackendSQLite && c.GetCacheDBPath() == "" {
		return fmt.Errorf("cache_db_path is required for the sqlite backend")
	}

	if c.LoadConcurrency != nil && *c.LoadConcurrency < 1 {
		return fmt.Errorf("load_concurrency must be at least 1, got %d", *c.LoadConcurrency)
	}

	return nil
}

// GetFitEnabled returns the fit_enabled value or the default.
func (c *AnalysisConfig) GetFitEnabled() bool {
	if c.FitEnabled == nil {
		return true
	}
	return *c.FitEnabled
}

// GetIscFitPoints returns the isc_fit_points value or the default.
func (c *AnalysisConfig) GetIscFitPoints() int {
	if c.IscFitPoints == nil {
		return 3
	}
	return *c.IscFitPoints
}

// GetVocFitPoints returns the voc_fit_points value or the default.
func (c *AnalysisConfig) GetVocFitPoints() int {
	if c.VocFitPoints == nil {
		return 5
	}
	return *c.VocFitPoints
}

// GetPmaxFitPoints returns the pmax_fit_points value or the default.
func (c *AnalysisConfig) GetPmaxFitPoints() int {
	if c.PmaxFitPoints == nil {
		return 10
	}
	return *c.PmaxFitPoints
}

// GetDiodeI0Seed returns the diode_i0_seed value or the default.
func (c *AnalysisConfig) GetDiodeI0Seed() float64 {
	if c.DiodeI0Seed == nil {
		return 4e-5
	}
	return *c.DiodeI0Seed
}

// GetDiodeVtSeed returns the diode_vt_seed value or the default.
func (c *AnalysisConfig) GetDiodeVtSeed() float64 {
	if c.DiodeVtSeed == nil {
		return 7.5e-2
	}
	return *c.DiodeVtSeed
}

// GetMaxFitIterations returns the max_fit_iterations value or the default.
func (c *AnalysisConfig) GetMaxFitIterations() int {
	if c.MaxFitIterations == nil {
		return 200
	}
	return *c.MaxFitIterations
}

// GetCacheBackend returns the cache_backend value or the default.
func (c *AnalysisConfig) GetCacheBackend() string {
	if c.CacheBackend == nil || *c.CacheBackend == "" {
		return CacheBackendFile
	}
	return *c.CacheBackend
}

// GetCacheDBPath returns the cache_db_path value or the default.
func (c *AnalysisConfig) GetCacheDBPath() string {
	if c.CacheDBPath == nil {
		return "ivcurve.db"
	}
	return *c.CacheDBPath
}

// GetSkipBadTraces returns the skip_bad_traces value or the default.
func (c *AnalysisConfig) GetSkipBadTraces() bool {
	if c.SkipBadTraces == nil {
		return false // a malformed trace aborts its bundle
	}
	return *c.SkipBadTraces
}

// GetLoadConcurrency returns the load_concurrency value or the default.
func (c *AnalysisConfig) GetLoadConcurrency() int {
	if c.LoadConcurrency == nil {
		return 4
	}
	return *c.LoadConcurrency
}
