// Package source reads activity recordings (GPX or FIT, optionally gzipped)
// and enumerates the recordings of a directory or a Strava export.
package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/planbiir/gtrack/internal/gpx"
)

// ErrSourceRead wraps every failure to load a recording.
var ErrSourceRead = errors.New("failed to read source")

// ErrUnsupportedFormat is returned for files that are neither GPX nor FIT.
var ErrUnsupportedFormat = errors.New("unsupported file extension, only gpx or fit (optionally gzipped) are supported")

// Format identifies the container of a recording.
type Format int

const (
	FormatUnknown Format = iota
	FormatGPX
	FormatFIT
)

// DetectFormat derives the format from the file name.
func DetectFormat(path string) Format {
	name := strings.ToLower(strings.TrimSuffix(strings.ToLower(path), ".gz"))
	switch {
	case strings.HasSuffix(name, ".gpx"):
		return FormatGPX
	case strings.HasSuffix(name, ".fit"):
		return FormatFIT
	default:
		return FormatUnknown
	}
}

// ReadFunc loads one recording; Read is the default implementation.
type ReadFunc func(ctx context.Context, path string) (*gpx.GPX, error)

// Read loads a GPX or FIT recording. Compressed input is detected from the
// gzip magic bytes, so the .gz suffix is optional. A missing name.gz falls
// back to name when that exists.
func Read(ctx context.Context, path string) (*gpx.GPX, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	format := DetectFormat(path)
	if format == FormatUnknown {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceRead, path, ErrUnsupportedFormat)
	}

	resolved := path
	if strings.HasSuffix(path, ".gz") {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			plain := strings.TrimSuffix(path, ".gz")
			if _, err := os.Stat(plain); err == nil {
				resolved = plain
			}
		}
	}

	file, err := os.Open(resolved)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceRead, err)
	}
	defer file.Close()

	doc, err := ReadFormat(file, format)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceRead, resolved, err)
	}
	return doc, nil
}

// ReadFormat decodes r as the given format, decompressing gzip input.
func ReadFormat(r io.Reader, format Format) (*gpx.GPX, error) {
	in, err := Decompress(r)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatGPX:
		return gpx.ParseReader(in)
	case FormatFIT:
		return DecodeFIT(in)
	default:
		return nil, ErrUnsupportedFormat
	}
}

// Decompress returns a reader yielding the plain content of r, unwrapping
// gzip when the stream starts with its magic bytes.
func Decompress(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("peek input: %w", err)
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		return zr, nil
	}
	return br, nil
}
