package bundle

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/banshee-data/ivcurve/internal/fsutil"
	"github.com/banshee-data/ivcurve/internal/iv/trace"
)

// TraceFile is a trace path with its detected format.
type TraceFile struct {
	Path   string
	Format trace.Format
}

// countLegacy returns how many of files are in the legacy layout.
func countLegacy(files []TraceFile) int {
	n := 0
	for _, f := range files {
		if f.Format == trace.FormatLegacy {
			n++
		}
	}
	return n
}

// TraceKey names the n-th trace of a bundle.
func TraceKey(n int) string {
	return trace.NativePrefix + strconv.Itoa(n)
}

func isTraceFile(name string) bool {
	if !strings.HasSuffix(strings.ToLower(name), ".csv") {
		return false
	}
	return strings.HasPrefix(name, trace.NativePrefix) || strings.HasPrefix(name, trace.LegacyPrefix)
}

// ExperimentTraceFiles lists the trace files of folder: native files in
// numeric suffix order, then legacy files in name order.
func ExperimentTraceFiles(fsys fsutil.FileSystem, folder string) ([]TraceFile, error) {
	entries, err := fsys.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", folder, err)
	}

	type native struct {
		n    int
		name string
	}
	var natives []native
	var legacy []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !isTraceFile(name) {
			continue
		}
		if strings.HasPrefix(name, trace.NativePrefix) {
			stem := strings.TrimSuffix(strings.TrimPrefix(name, trace.NativePrefix), filepath.Ext(name))
			n, err := strconv.Atoi(stem)
			if err != nil {
				n = -1
			}
			natives = append(natives, native{n: n, name: name})
			continue
		}
		legacy = append(legacy, name)
	}
	sort.SliceStable(natives, func(i, j int) bool {
		if natives[i].n != natives[j].n {
			return natives[i].n < natives[j].n
		}
		return natives[i].name < natives[j].name
	})
	sort.Strings(legacy)

	files := make([]TraceFile, 0, len(natives)+len(legacy))
	for _, f := range natives {
		files = append(files, TraceFile{Path: filepath.Join(folder, f.name), Format: trace.FormatNative})
	}
	for _, name := range legacy {
		files = append(files, TraceFile{Path: filepath.Join(folder, name), Format: trace.FormatLegacy})
	}
	return files, nil
}

// DiscoverExperiments walks roots and returns every folder holding at
// least one trace file, in walk order.
func DiscoverExperiments(fsys fsutil.FileSystem, roots []string) ([]string, error) {
	var out []string
	for _, root := range roots {
		if err := walk(fsys, filepath.Clean(root), func(dir string, entries []string) {
			for _, name := range entries {
				if isTraceFile(name) {
					out = append(out, dir)
					return
				}
			}
		}); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DiscoverGroups walks roots and returns every group snapshot file.
func DiscoverGroups(fsys fsutil.FileSystem, roots []string) ([]string, error) {
	var out []string
	for _, root := range roots {
		if err := walk(fsys, filepath.Clean(root), func(dir string, entries []string) {
			for _, name := range entries {
				if strings.HasSuffix(name, GroupExt) {
					out = append(out, filepath.Join(dir, name))
				}
			}
		}); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// walk visits dir and its subdirectories depth first, passing the names of
// the regular files in each. A root that is a file is skipped.
func walk(fsys fsutil.FileSystem, dir string, visit func(dir string, files []string)) error {
	info, err := fsys.Stat(dir)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil
	}
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var files, subdirs []string
	for _, e := range entries {
		if e.IsDir() {
			subdirs = append(subdirs, filepath.Join(dir, e.Name()))
			continue
		}
		files = append(files, e.Name())
	}
	visit(dir, files)
	for _, sub := range subdirs {
		if err := walk(fsys, sub, visit); err != nil {
			return err
		}
	}
	return nil
}
