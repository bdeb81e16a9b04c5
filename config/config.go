package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/maastricht-university/speaker-stitch/stitch"
)

type Service struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// Diarization selects the per-chunk diarization backend: "http" posts the
// chunk to URL, "aws" runs an Amazon Transcribe job with speaker labels.
type Diarization struct {
	Backend     string `mapstructure:"backend" yaml:"backend"`
	URL         string `mapstructure:"url" yaml:"url"`
	MaxSpeakers int    `mapstructure:"max_speakers" yaml:"max_speakers"`
}

type AWS struct {
	Region       string        `mapstructure:"region" yaml:"region"`
	Bucket       string        `mapstructure:"bucket" yaml:"bucket"`
	Prefix       string        `mapstructure:"prefix" yaml:"prefix"`
	LanguageCode string        `mapstructure:"language_code" yaml:"language_code"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

type Services struct {
	Diarization Diarization `mapstructure:"diarization" yaml:"diarization"`
	Labeler     Service     `mapstructure:"labeler" yaml:"labeler"`
	Publish     Service     `mapstructure:"publish" yaml:"publish"`
	AWS         AWS         `mapstructure:"aws" yaml:"aws"`
}

type Chunking struct {
	ChunkLength      float64       `mapstructure:"chunk_length" yaml:"chunk_length"`
	Overlap          float64       `mapstructure:"overlap" yaml:"overlap"`
	MaxChunks        int           `mapstructure:"max_chunks" yaml:"max_chunks"`
	FallbackDuration float64       `mapstructure:"fallback_duration" yaml:"fallback_duration"`
	MaxConcurrent    int           `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	ChunkTimeout     time.Duration `mapstructure:"chunk_timeout" yaml:"chunk_timeout"`
}

type Labeling struct {
	Utterances int `mapstructure:"utterances" yaml:"utterances"`
}

type Media struct {
	FFmpeg     string `mapstructure:"ffmpeg" yaml:"ffmpeg"`
	FFprobe    string `mapstructure:"ffprobe" yaml:"ffprobe"`
	SampleRate int    `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels   int    `mapstructure:"channels" yaml:"channels"`
}

type Root struct {
	Pipeline struct {
		Name      string `mapstructure:"name" yaml:"name"`
		LogLvl    string `mapstructure:"log_level" yaml:"log_level"`
		LogFormat string `mapstructure:"log_format" yaml:"log_format"`
		LogFile   string `mapstructure:"log_file" yaml:"log_file"`
	} `mapstructure:"pipeline" yaml:"pipeline"`
	Media    Media              `mapstructure:"media" yaml:"media"`
	Chunking Chunking           `mapstructure:"chunking" yaml:"chunking"`
	Matching stitch.MatchPolicy `mapstructure:"matching" yaml:"matching"`
	Labeling Labeling           `mapstructure:"labeling" yaml:"labeling"`
	Services Services           `mapstructure:"services" yaml:"services"`
	Paths    struct {
		Outputs string `mapstructure:"outputs" yaml:"outputs"`
		Work    string `mapstructure:"work" yaml:"work"`
	} `mapstructure:"paths" yaml:"paths"`
	Metrics struct {
		Addr string `mapstructure:"addr" yaml:"addr"`
	} `mapstructure:"metrics" yaml:"metrics"`
}

// EnvPrefix prefixes environment overrides, e.g. STITCH_CHUNKING_OVERLAP.
const EnvPrefix = "STITCH"

func setDefaults(v *viper.Viper) {
	v.SetDefault("pipeline.name", "speaker-stitch")
	v.SetDefault("pipeline.log_level", "info")
	v.SetDefault("pipeline.log_format", "text")
	v.SetDefault("media.ffmpeg", "ffmpeg")
	v.SetDefault("media.ffprobe", "ffprobe")
	v.SetDefault("media.sample_rate", 16000)
	v.SetDefault("media.channels", 1)
	v.SetDefault("chunking.chunk_length", stitch.DefaultChunkLength)
	v.SetDefault("chunking.overlap", stitch.DefaultOverlap)
	v.SetDefault("chunking.max_chunks", stitch.DefaultMaxChunks)
	v.SetDefault("chunking.max_concurrent", 4)
	v.SetDefault("chunking.chunk_timeout", 2*time.Minute)
	v.SetDefault("matching.confidence_floor", stitch.DefaultMatchPolicy().ConfidenceFloor)
	v.SetDefault("matching.review_threshold", stitch.DefaultMatchPolicy().ReviewThreshold)
	v.SetDefault("labeling.utterances", 10)
	v.SetDefault("services.diarization.backend", "http")
	v.SetDefault("services.diarization.max_speakers", 4)
	v.SetDefault("services.aws.region", "us-east-1")
	v.SetDefault("services.aws.prefix", "chunks")
	v.SetDefault("services.aws.language_code", "en-US")
	v.SetDefault("services.aws.poll_interval", 5*time.Second)
	v.SetDefault("pipeline.log_file", "")
	v.SetDefault("services.diarization.url", "")
	v.SetDefault("services.labeler.url", "")
	v.SetDefault("services.publish.url", "")
	v.SetDefault("services.aws.bucket", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("paths.outputs", "outputs")
	v.SetDefault("paths.work", filepath.Join(os.TempDir(), "speaker-stitch"))
}

// Candidates lists the config files tried when no explicit path is given.
func Candidates() []string {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return []string{
		filepath.Join("config", env, "config.yaml"),
		filepath.Join("src", "shared", "config.yaml"),
	}
}

// Load reads path, or the first existing candidate when path is empty, and
// applies STITCH_* environment overrides. No config file at all is fine:
// defaults apply.
func Load(path string) (*Root, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		for _, p := range Candidates() {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Root
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values the pipeline cannot recover from.
func (c *Root) Validate() error {
	var errs []error
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.ChunkLength {
		errs = append(errs, fmt.Errorf("chunking.overlap %v must be in [0, chunk_length %v)", c.Chunking.Overlap, c.Chunking.ChunkLength))
	}
	if c.Chunking.MaxConcurrent < 1 {
		errs = append(errs, fmt.Errorf("chunking.max_concurrent must be at least 1"))
	}
	switch strings.ToLower(c.Services.Diarization.Backend) {
	case "http", "":
	case "aws":
		if c.Services.AWS.Bucket == "" {
			errs = append(errs, fmt.Errorf("services.aws.bucket is required for the aws backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown diarization backend %q", c.Services.Diarization.Backend))
	}
	return errors.Join(errs...)
}

// YAML renders the effective configuration.
func (c *Root) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
