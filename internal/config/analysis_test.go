package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmptyAnalysisConfigDefaults(t *testing.T) {
	cfg := EmptyAnalysisConfig()

	if !cfg.GetFitEnabled() {
		t.Error("GetFitEnabled() = false, want true")
	}
	if cfg.GetIscFitPoints() != 3 {
		t.Errorf("GetIscFitPoints() = %d, want 3", cfg.GetIscFitPoints())
	}
	if cfg.GetVocFitPoints() != 5 {
		t.Errorf("GetVocFitPoints() = %d, want 5", cfg.GetVocFitPoints())
	}
	if cfg.GetPmaxFitPoints() != 10 {
		t.Errorf("GetPmaxFitPoints() = %d, want 10", cfg.GetPmaxFitPoints())
	}
	if cfg.GetDiodeI0Seed() != 4e-5 {
		t.Errorf("GetDiodeI0Seed() = %g, want 4e-5", cfg.GetDiodeI0Seed())
	}
	if cfg.GetDiodeVtSeed() != 7.5e-2 {
		t.Errorf("GetDiodeVtSeed() = %g, want 0.075", cfg.GetDiodeVtSeed())
	}
	if cfg.GetCacheBackend() != CacheBackendFile {
		t.Errorf("GetCacheBackend() = %q, want file", cfg.GetCacheBackend())
	}
	if cfg.GetSkipBadTraces() {
		t.Error("GetSkipBadTraces() = true, want false")
	}
	if cfg.GetLoadConcurrency() != 4 {
		t.Errorf("GetLoadConcurrency() = %d, want 4", cfg.GetLoadConcurrency())
	}
}

func TestDefaultsFileMatchesAccessors(t *testing.T) {
	cfg, err := LoadAnalysisConfig(filepath.Join("..", "..", DefaultConfigPath))
	if err != nil {
		t.Fatalf("LoadAnalysisConfig failed: %v", err)
	}

	want := DefaultAnalysisConfig()
	if *cfg.FitEnabled != *want.FitEnabled ||
		*cfg.IscFitPoints != *want.IscFitPoints ||
		*cfg.VocFitPoints != *want.VocFitPoints ||
		*cfg.PmaxFitPoints != *want.PmaxFitPoints ||
		*cfg.DiodeI0Seed != *want.DiodeI0Seed ||
		*cfg.DiodeVtSeed != *want.DiodeVtSeed ||
		*cfg.MaxFitIterations != *want.MaxFitIterations ||
		*cfg.CacheBackend != *want.CacheBackend ||
		*cfg.CacheDBPath != *want.CacheDBPath ||
		*cfg.SkipBadTraces != *want.SkipBadTraces ||
		*cfg.LoadConcurrency != *want.LoadConcurrency {
		t.Errorf("defaults file drifted from accessor defaults")
	}
}

func TestLoadAnalysisConfig_Partial(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "partial.json")
	if err := os.WriteFile(configPath, []byte(`{"fit_enabled": false, "skip_bad_traces": true}`), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadAnalysisConfig(configPath)
	if err != nil {
		t.Fatalf("LoadAnalysisConfig failed: %v", err)
	}

	if cfg.GetFitEnabled() {
		t.Error("expected fit_enabled false")
	}
	if !cfg.GetSkipBadTraces() {
		t.Error("expected skip_bad_traces true")
	}
	if cfg.GetVocFitPoints() != 5 {
		t.Errorf("omitted voc_fit_points should default to 5, got %d", cfg.GetVocFitPoints())
	}
}

func TestLoadAnalysisConfig_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	testCases := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"wrong extension", "cfg.yaml", `{}`, ".json extension"},
		{"bad json", "bad.json", `{"fit_enabled": `, "failed to parse"},
		{"zero points", "points.json", `{"voc_fit_points": 0}`, "voc_fit_points"},
		{"negative vt", "vt.json", `{"diode_vt_seed": -1}`, "diode_vt_seed"},
		{"unknown backend", "backend.json", `{"cache_backend": "redis"}`, "cache_backend"},
		{"sqlite without path", "sqlite.json", `{"cache_backend": "sqlite", "cache_db_path": ""}`, "cache_db_path"},
		{"zero concurrency", "conc.json", `{"load_concurrency": 0}`, "load_concurrency"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tc.file)
			if err := os.WriteFile(path, []byte(tc.content), 0644); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}
			_, err := LoadAnalysisConfig(path)
			if err == nil {
				t.Fatalf("expected error containing %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadAnalysisConfig_Missing(t *testing.T) {
	if _, err := LoadAnalysisConfig(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
