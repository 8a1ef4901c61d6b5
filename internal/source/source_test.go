package source

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tormoder/fit"
)

const sampleGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
	<trk><name>ride</name><trkseg>
		<trkpt lat="50.0" lon="14.0"><ele>200</ele><time>2025-01-01T10:00:00Z</time></trkpt>
		<trkpt lat="50.001" lon="14.001"><time>2025-01-01T10:00:05Z</time></trkpt>
	</trkseg></trk>
</gpx>`

func gzipBytes(t *testing.T, data string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatGPX, DetectFormat("a.gpx"))
	assert.Equal(t, FormatGPX, DetectFormat("A.GPX.gz"))
	assert.Equal(t, FormatFIT, DetectFormat("a.fit.gz"))
	assert.Equal(t, FormatUnknown, DetectFormat("a.tcx"))
}

func TestReadPlainAndCompressed(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain.gpx")
	packed := filepath.Join(dir, "packed.gpx.gz")
	// compressed content behind a plain name is detected by its magic bytes
	disguised := filepath.Join(dir, "disguised.gpx")

	require.NoError(t, os.WriteFile(plain, []byte(sampleGPX), 0o644))
	require.NoError(t, os.WriteFile(packed, gzipBytes(t, sampleGPX), 0o644))
	require.NoError(t, os.WriteFile(disguised, gzipBytes(t, sampleGPX), 0o644))

	for _, path := range []string{plain, packed, disguised} {
		doc, err := Read(context.Background(), path)
		require.NoError(t, err, path)
		require.Len(t, doc.Tracks, 1, path)
		assert.Len(t, doc.FlattenPoints(), 2, path)
	}
}

func TestReadFallsBackToUncompressedName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.gpx"), []byte(sampleGPX), 0o644))

	doc, err := Read(context.Background(), filepath.Join(dir, "a.gpx.gz"))
	require.NoError(t, err)
	assert.Len(t, doc.FlattenPoints(), 2)
}

func TestReadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Read(context.Background(), filepath.Join(dir, "missing.gpx"))
	assert.ErrorIs(t, err, ErrSourceRead)

	_, err = Read(context.Background(), filepath.Join(dir, "notes.txt"))
	assert.ErrorIs(t, err, ErrSourceRead)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	broken := filepath.Join(dir, "broken.fit")
	require.NoError(t, os.WriteFile(broken, []byte("not a fit file"), 0o644))
	_, err = Read(context.Background(), broken)
	assert.ErrorIs(t, err, ErrSourceRead)
}

func TestListDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.gpx", "a.fit.gz", "c.gpx.gz", "notes.txt", "d.fit"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.gpx"), 0o755))

	files, err := ListDir(dir)
	require.NoError(t, err)

	var ids []string
	for _, f := range files {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
	assert.Equal(t, filepath.Join(dir, "a.fit.gz"), files[0].Path)
}

func TestParseStravaCSV(t *testing.T) {
	csvData := "Activity ID,Activity Date,Activity Name,Activity Type,Filename\n" +
		"101,\"Jan 1, 2025\",Morning Ride,Ride,activities/101.fit.gz\n" +
		"102,\"Jan 2, 2025\",Manual entry,Run,\n" +
		"103,\"Jan 3, 2025\",\"Evening, Ride\",Ride,activities/103.gpx\n"

	files, err := parseStravaCSV(strings.NewReader(csvData), "/export")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, File{ID: "101", Name: "Morning Ride", Path: filepath.Join("/export", "activities", "101.fit.gz")}, files[0])
	assert.Equal(t, "Evening, Ride", files[1].Name)

	_, err = parseStravaCSV(strings.NewReader("Activity ID,Filename\n"), "/export")
	assert.Error(t, err)
}

func fitRecord(at time.Time, lat, lon, ele float64) *fit.RecordMsg {
	rec := fit.NewRecordMsg()
	rec.Timestamp = at
	if !math.IsNaN(lat) && !math.IsNaN(lon) {
		rec.PositionLat = fit.NewLatitudeDegrees(lat)
		rec.PositionLong = fit.NewLongitudeDegrees(lon)
	}
	if !math.IsNaN(ele) {
		rec.EnhancedAltitude = uint32((ele + 500) * 5)
	}
	return rec
}

func encodeActivity(t *testing.T, records []*fit.RecordMsg, lapEnds ...time.Time) []byte {
	t.Helper()
	file, err := fit.NewFile(fit.FileTypeActivity, fit.NewHeader(fit.V20, true))
	require.NoError(t, err)
	activity, err := file.Activity()
	require.NoError(t, err)
	activity.Records = records
	for _, end := range lapEnds {
		lap := fit.NewLapMsg()
		lap.Timestamp = end
		activity.Laps = append(activity.Laps, lap)
	}

	var buf bytes.Buffer
	require.NoError(t, fit.Encode(&buf, file, binary.LittleEndian))
	return buf.Bytes()
}

func TestDecodeFIT(t *testing.T) {
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	at := func(sec int) time.Time { return base.Add(time.Duration(sec) * time.Second) }
	nan := math.NaN()

	data := encodeActivity(t, []*fit.RecordMsg{
		fitRecord(at(-1), nan, nan, 190), // no fix yet, skipped
		fitRecord(at(0), 50.0, 14.0, 200),
		fitRecord(at(1), nan, nan, nan), // reuses the last fix
		fitRecord(at(2), 50.001, 14.0, 205),
		fitRecord(at(2), 50.0015, 14.0, nan), // same instant, refines the position
		fitRecord(at(3), 50.002, 14.0, nan),
		fitRecord(at(4), 50.003, 14.0, nan),
		fitRecord(at(5), 50.004, 14.0, nan),
	}, at(2), at(5))

	doc, err := DecodeFIT(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, doc.Tracks, 1)

	segments := doc.Tracks[0].Segments
	require.Len(t, segments, 2, "one segment per lap")
	require.Len(t, segments[0].Points, 3)
	require.Len(t, segments[1].Points, 3)

	first := segments[0].Points
	assert.True(t, first[0].Time.Equal(at(0)))
	assert.InDelta(t, 50.0, first[0].Lat, 1e-6)
	assert.InDelta(t, 14.0, first[0].Lon, 1e-6)
	require.True(t, first[0].HasElevation)
	assert.InDelta(t, 200, first[0].Elevation, 1e-9)

	assert.True(t, first[1].Time.Equal(at(1)))
	assert.InDelta(t, 50.0, first[1].Lat, 1e-6)
	assert.False(t, first[1].HasElevation)

	assert.True(t, first[2].Time.Equal(at(2)))
	assert.InDelta(t, 50.0015, first[2].Lat, 1e-6)
	require.True(t, first[2].HasElevation, "elevation of the earlier record is kept")
	assert.InDelta(t, 205, first[2].Elevation, 1e-9)

	assert.True(t, segments[1].Points[0].Time.Equal(at(3)))
	assert.True(t, segments[1].Points[2].Time.Equal(at(5)))
	assert.InDelta(t, 50.004, segments[1].Points[2].Lat, 1e-6)
}
