package bundle

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/ivcurve/internal/fsutil"
)

// SettingsFile is the instrument settings file written next to the traces.
const SettingsFile = "Settings.txt"

// SettingsReader supplies the metadata of an experiment folder.
type SettingsReader interface {
	Read(folder string) (Metadata, error)
}

// FileSettings reads Settings.txt. When the file is missing the creation
// time falls back to the folder's modification time.
type FileSettings struct {
	FS fsutil.FileSystem
}

// Read parses folder/Settings.txt. Line 1 is the creation time. When line
// 3 starts with "Film", lines 4 and 5 end in the film thickness and area.
func (s FileSettings) Read(folder string) (Metadata, error) {
	meta := UnknownMetadata()

	data, err := s.FS.ReadFile(filepath.Join(folder, SettingsFile))
	if errors.Is(err, fs.ErrNotExist) {
		info, statErr := s.FS.Stat(folder)
		if statErr != nil {
			return meta, fmt.Errorf("failed to stat %s: %w", folder, statErr)
		}
		meta.Created = info.ModTime().Format(TimeLayout)
		return meta, nil
	}
	if err != nil {
		return meta, fmt.Errorf("failed to read settings: %w", err)
	}

	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	if len(lines) > 0 {
		meta.Created = strings.TrimSpace(lines[0])
	}
	if len(lines) >= 5 && strings.HasPrefix(lines[2], "Film") {
		meta.FilmThickness = lastNumber(lines[3])
		meta.FilmArea = lastNumber(lines[4])
	}
	return meta, nil
}

// lastNumber parses the last space separated token of line, or Unknown.
func lastNumber(line string) float64 {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Unknown
	}
	v, err := strconv.ParseFloat(fields[len(fields)-1], 64)
	if err != nil {
		return Unknown
	}
	return v
}
