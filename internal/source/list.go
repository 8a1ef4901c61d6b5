package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// File identifies one recording to process.
type File struct {
	ID   string
	Name string
	Path string
}

var recordingSuffixes = []string{".gpx", ".gpx.gz", ".fit", ".fit.gz"}

// ListDir returns the recordings directly inside dir, sorted by file name.
// The id is the file name without its extensions.
func ListDir(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	var files []File
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id, ok := trimRecordingSuffix(entry.Name())
		if !ok {
			continue
		}
		files = append(files, File{
			ID:   id,
			Name: id,
			Path: filepath.Join(dir, entry.Name()),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return filepath.Base(files[i].Path) < filepath.Base(files[j].Path)
	})
	return files, nil
}

func trimRecordingSuffix(name string) (string, bool) {
	lower := strings.ToLower(name)
	for _, suffix := range recordingSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return name[:len(name)-len(suffix)], true
		}
	}
	return "", false
}

// Strava export column names.
const (
	stravaFilename = "Filename"
	stravaID       = "Activity ID"
	stravaName     = "Activity Name"
)

// ReadStravaCSV lists the recordings referenced by a Strava activities.csv.
// Paths are relative to the CSV file; rows without a file are skipped.
func ReadStravaCSV(path string) ([]File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	files, err := parseStravaCSV(f, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return files, nil
}

func parseStravaCSV(r io.Reader, baseDir string) ([]File, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		// Strava repeats some column names; the first occurrence wins
		name = strings.TrimPrefix(strings.TrimSpace(name), "\ufeff")
		if _, seen := columns[name]; !seen {
			columns[name] = i
		}
	}
	for _, required := range []string{stravaFilename, stravaID, stravaName} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	var files []File
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		field := func(name string) string {
			if i := columns[name]; i < len(record) {
				return record[i]
			}
			return ""
		}

		filename := field(stravaFilename)
		if filename == "" {
			continue
		}
		files = append(files, File{
			ID:   field(stravaID),
			Name: field(stravaName),
			Path: filepath.Join(baseDir, filepath.FromSlash(filename)),
		})
	}

	return files, nil
}
