package output

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleResult() *Result {
	return &Result{
		Project:     "proj42",
		Root:        "/data/projects/proj42",
		Destination: "gs://lab-archive/proj42",
		RunID:       "8a6d4f2e-0000-0000-0000-000000000000",
		Scan: ScanStats{
			FilesScanned:     1200,
			JunkDeleted:      4,
			SubtreesExcluded: 2,
			Transcoded:       1,
			Duration:         3 * time.Second,
		},
		Manifest: ManifestStats{
			Entries:  1190,
			Retained: 1100,
			Fresh:    90,
			Removed:  10,
		},
		Upload: UploadStats{
			Planned:          90,
			SkippedCurrent:   1100,
			Succeeded:        89,
			Failed:           1,
			BytesTransferred: 4 << 30,
			Duration:         90 * time.Second,
		},
		Warnings: []string{"remote objects exist but no upload is recorded"},
	}
}

func TestResult_Complete(t *testing.T) {
	r := sampleResult()
	assert.False(t, r.Complete(), "one failed upload must mark the run incomplete")

	r.Upload.Failed = 0
	assert.True(t, r.Complete())

	r.Interrupted = true
	assert.False(t, r.Complete())
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	registry := NewRegistry()
	registry.Register("test", func() Formatter {
		return &PlainFormatter{}
	})

	formatter, err := registry.Get("test")
	require.NoError(t, err)
	assert.NotNil(t, formatter)

	_, err = registry.Get("nonexistent")
	assert.Error(t, err)
}

func TestRegistry_Available(t *testing.T) {
	registry := NewRegistry()
	registry.Register("zeta", func() Formatter { return &PlainFormatter{} })
	registry.Register("alpha", func() Formatter { return &PlainFormatter{} })

	assert.Equal(t, []string{"alpha", "zeta"}, registry.Available())
}

func TestDefaultRegistry_BuiltinFormatters(t *testing.T) {
	for _, name := range []string{"plain", "json", "yaml", "pretty"} {
		formatter, err := Get(name)
		require.NoError(t, err, "formatter %s must be registered", name)
		assert.NotNil(t, formatter)
	}
}

func TestPlainFormatter(t *testing.T) {
	var buf bytes.Buffer
	err := (&PlainFormatter{}).Format(&buf, sampleResult())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "proj42")
	assert.Contains(t, out, "files_scanned")
	assert.Contains(t, out, "1200")
	assert.Contains(t, out, "warning")
	assert.NotContains(t, out, "dry_run", "dry_run only shown for dry runs")
}

func TestPlainFormatter_DryRun(t *testing.T) {
	r := sampleResult()
	r.DryRun = true

	var buf bytes.Buffer
	require.NoError(t, (&PlainFormatter{}).Format(&buf, r))
	assert.Contains(t, buf.String(), "dry_run")
}

func TestJSONFormatter_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONFormatter{}).Format(&buf, sampleResult()))

	var decoded Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "proj42", decoded.Project)
	assert.Equal(t, 89, decoded.Upload.Succeeded)
	assert.Equal(t, int64(4<<30), decoded.Upload.BytesTransferred)
}

func TestYAMLFormatter_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&YAMLFormatter{}).Format(&buf, sampleResult()))

	var decoded Result
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "proj42", decoded.Project)
	assert.Equal(t, 1190, decoded.Manifest.Entries)
}

func TestPrettyFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&PrettyFormatter{}).Format(&buf, sampleResult()))

	out := buf.String()
	assert.Contains(t, out, "proj42")
	assert.Contains(t, out, "incomplete", "failed upload must show incomplete status")
	assert.Contains(t, out, "4.0 GiB")
}

func TestPrettyFormatter_CleanRun(t *testing.T) {
	r := sampleResult()
	r.Upload.Failed = 0
	r.Warnings = nil

	var buf bytes.Buffer
	require.NoError(t, (&PrettyFormatter{}).Format(&buf, r))
	assert.Contains(t, buf.String(), "complete")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0s", formatDuration(0))
	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond))
	assert.Equal(t, "1m30s", formatDuration(90*time.Second))
}
