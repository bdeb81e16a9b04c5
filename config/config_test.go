package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "speaker-stitch", cfg.Pipeline.Name)
	assert.Equal(t, 30.0, cfg.Chunking.ChunkLength)
	assert.Equal(t, 5.0, cfg.Chunking.Overlap)
	assert.Equal(t, 50, cfg.Chunking.MaxChunks)
	assert.Equal(t, 4, cfg.Chunking.MaxConcurrent)
	assert.Equal(t, 2*time.Minute, cfg.Chunking.ChunkTimeout)
	assert.Equal(t, 0.0, cfg.Matching.ConfidenceFloor)
	assert.Equal(t, 0.6, cfg.Matching.ReviewThreshold)
	assert.Equal(t, "http", cfg.Services.Diarization.Backend)
	assert.Equal(t, "ffprobe", cfg.Media.FFprobe)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
pipeline:
  log_level: debug
chunking:
  chunk_length: 20
  overlap: 4
  chunk_timeout: 45s
matching:
  confidence_floor: 0.3
services:
  diarization:
    url: http://diarizer:8000
  labeler:
    url: http://labeler:8001
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Pipeline.LogLvl)
	assert.Equal(t, 20.0, cfg.Chunking.ChunkLength)
	assert.Equal(t, 4.0, cfg.Chunking.Overlap)
	assert.Equal(t, 45*time.Second, cfg.Chunking.ChunkTimeout)
	assert.Equal(t, 0.3, cfg.Matching.ConfidenceFloor)
	assert.Equal(t, 0.6, cfg.Matching.ReviewThreshold)
	assert.Equal(t, "http://diarizer:8000", cfg.Services.Diarization.URL)
	assert.Equal(t, "http://labeler:8001", cfg.Services.Labeler.URL)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("STITCH_CHUNKING_OVERLAP", "7")
	t.Setenv("STITCH_SERVICES_DIARIZATION_URL", "http://env:9000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7.0, cfg.Chunking.Overlap)
	assert.Equal(t, "http://env:9000", cfg.Services.Diarization.URL)
}

func TestLoad_EnvOverridePipeline(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "stitch.log")
	t.Setenv("STITCH_PIPELINE_NAME", "ward-7")
	t.Setenv("STITCH_PIPELINE_LOG_LEVEL", "debug")
	t.Setenv("STITCH_PIPELINE_LOG_FORMAT", "json")
	t.Setenv("STITCH_PIPELINE_LOG_FILE", logFile)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "ward-7", cfg.Pipeline.Name)
	assert.Equal(t, "debug", cfg.Pipeline.LogLvl)
	assert.Equal(t, "json", cfg.Pipeline.LogFormat)
	assert.Equal(t, logFile, cfg.Pipeline.LogFile)

	out, err := cfg.YAML()
	require.NoError(t, err)
	var back struct {
		Pipeline map[string]any `yaml:"pipeline"`
	}
	require.NoError(t, yaml.Unmarshal(out, &back))
	// every key under pipeline has a default and therefore binds from env
	assert.ElementsMatch(t, []string{"name", "log_level", "log_format", "log_file"}, keys(back.Pipeline))
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		expect string
	}{
		{"overlap too long", "chunking:\n  chunk_length: 10\n  overlap: 10\n", "chunking.overlap"},
		{"no concurrency", "chunking:\n  max_concurrent: 0\n", "max_concurrent"},
		{"unknown backend", "services:\n  diarization:\n    backend: carrier-pigeon\n", "unknown diarization backend"},
		{"aws without bucket", "services:\n  diarization:\n    backend: aws\n", "services.aws.bucket"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expect)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestRoot_YAML(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	out, err := cfg.YAML()
	require.NoError(t, err)

	var back map[string]any
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Contains(t, back, "chunking")
	assert.Contains(t, back, "matching")
}

func TestCandidates(t *testing.T) {
	t.Setenv("CONFIG_ENV", "prod")
	assert.Equal(t, filepath.Join("config", "prod", "config.yaml"), Candidates()[0])
}
