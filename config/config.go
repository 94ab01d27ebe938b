// Package config holds the runtime configuration of the beat tracker.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-pulse/algorithms/spectral"
	"github.com/RyanBlaney/sonido-pulse/algorithms/temporal"
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("config: invalid")

// Mode selects how beats are produced
type Mode string

const (
	ModeAdaptive Mode = "adaptive" // derive the tempo from audio
	ModeConstant Mode = "constant" // fixed tempo, no analysis
)

// SourceKind selects the audio source
type SourceKind string

const (
	SourceCapture SourceKind = "capture" // live device through ffmpeg
	SourceWAV     SourceKind = "wav"     // WAV file replay
	SourceStdin   SourceKind = "stdin"   // raw s16le mono on stdin
)

// AudioConfig describes the PCM frames delivered by the source
type AudioConfig struct {
	SampleRate         int     `yaml:"sample_rate" json:"sample_rate"`
	FrameLength        int     `yaml:"frame_length" json:"frame_length"`
	SilenceThresholdDB float64 `yaml:"silence_threshold_db" json:"silence_threshold_db"` // input below this level is reported as silent
}

// SpectrumConfig configures the frame reduction
type SpectrumConfig struct {
	Bands            int     `yaml:"bands" json:"bands"`
	EdgeChop         int     `yaml:"edge_chop" json:"edge_chop"`
	RetainDivisor    int     `yaml:"retain_divisor" json:"retain_divisor"`
	MagnitudeDivisor float64 `yaml:"magnitude_divisor" json:"magnitude_divisor"`
	NoiseFloor       float64 `yaml:"noise_floor" json:"noise_floor"`
	Scale            float64 `yaml:"scale" json:"scale"`
	BassBand         int     `yaml:"bass_band" json:"bass_band"`
	Window           string  `yaml:"window" json:"window"` // "none" or "hann"
}

// BeatConfig configures beat acceptance and tempo smoothing
type BeatConfig struct {
	SampleRange          int     `yaml:"sample_range" json:"sample_range"`                   // bass history capacity
	MaxBeatSamples       int     `yaml:"max_beat_samples" json:"max_beat_samples"`           // tempo window capacity
	IncrementSensitivity float64 `yaml:"increment_sensitivity" json:"increment_sensitivity"` // minimum mean bass rise
	SampleAverage        float64 `yaml:"sample_average" json:"sample_average"`               // minimum mean bass level
	AllowableError       float64 `yaml:"allowable_error" json:"allowable_error"`             // phase tolerance in beats
	InitialBPM           float64 `yaml:"initial_bpm" json:"initial_bpm"`
}

// SinkConfig is the destination of beat datagrams
type SinkConfig struct {
	Address string `yaml:"address" json:"address"`
	Port    int    `yaml:"port" json:"port"`
}

// Addr returns host:port
func (s SinkConfig) Addr() string {
	return net.JoinHostPort(s.Address, strconv.Itoa(s.Port))
}

// SourceConfig selects and configures the audio source
type SourceConfig struct {
	Kind        SourceKind `yaml:"kind" json:"kind"`
	FFmpegPath  string     `yaml:"ffmpeg_path" json:"ffmpeg_path"`
	InputFormat string     `yaml:"input_format" json:"input_format"`
	Device      string     `yaml:"device" json:"device"`
	StreamType  string     `yaml:"stream_type" json:"stream_type"`
	Command     []string   `yaml:"command,omitempty" json:"command,omitempty"`
	Path        string     `yaml:"path" json:"path"`         // WAV file
	Realtime    bool       `yaml:"realtime" json:"realtime"` // pace file input like a live device
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address" json:"address"`
}

// Config stores the application configuration.
type Config struct {
	Mode         Mode           `yaml:"mode" json:"mode"`
	LogLevel     string         `yaml:"log_level" json:"log_level"`
	PrintProfile bool           `yaml:"print_profile" json:"print_profile"`
	Audio        AudioConfig    `yaml:"audio" json:"audio"`
	Spectrum     SpectrumConfig `yaml:"spectrum" json:"spectrum"`
	Beat         BeatConfig     `yaml:"beat" json:"beat"`
	Sink         SinkConfig     `yaml:"sink" json:"sink"`
	Source       SourceConfig   `yaml:"source" json:"source"`
	Metrics      MetricsConfig  `yaml:"metrics" json:"metrics"`
}

// Default returns the stock tuning: 44.1 kHz mono in 1024-sample frames,
// eight bands, a six-reading bass history and a five-beat tempo window.
func Default() *Config {
	bands := spectral.DefaultBandEnergyConfig()
	onset := temporal.DefaultOnsetConfig()
	return &Config{
		Mode:     ModeAdaptive,
		LogLevel: "info",
		Audio: AudioConfig{
			SampleRate:         44100,
			FrameLength:        1024,
			SilenceThresholdDB: -60,
		},
		Spectrum: SpectrumConfig{
			Bands:            bands.Bands,
			EdgeChop:         bands.EdgeChop,
			RetainDivisor:    bands.RetainDivisor,
			MagnitudeDivisor: bands.MagnitudeDivisor,
			NoiseFloor:       bands.NoiseFloor,
			Scale:            bands.Scale,
			BassBand:         0,
			Window:           bands.Window,
		},
		Beat: BeatConfig{
			SampleRange:          6,
			MaxBeatSamples:       5,
			IncrementSensitivity: onset.IncrementSensitivity,
			SampleAverage:        onset.SampleAverage,
			AllowableError:       onset.AllowableError,
			InitialBPM:           120,
		},
		Sink: SinkConfig{
			Address: "127.0.0.1",
			Port:    9999,
		},
		Source: SourceConfig{
			Kind:        SourceCapture,
			FFmpegPath:  "ffmpeg",
			InputFormat: "pulse",
			Device:      "default",
		},
		Metrics: MetricsConfig{
			Address: ":9464",
		},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from SONIDO_PULSE_* environment variables.
func (c *Config) ApplyEnv() {
	c.Mode = Mode(envStr("SONIDO_PULSE_MODE", string(c.Mode)))
	c.LogLevel = envStr("SONIDO_PULSE_LOG_LEVEL", c.LogLevel)
	c.Sink.Address = envStr("SONIDO_PULSE_SINK_ADDRESS", c.Sink.Address)
	c.Sink.Port = envInt("SONIDO_PULSE_SINK_PORT", c.Sink.Port)
	c.Beat.InitialBPM = envFloat("SONIDO_PULSE_INITIAL_BPM", c.Beat.InitialBPM)
	c.Source.Kind = SourceKind(envStr("SONIDO_PULSE_SOURCE", string(c.Source.Kind)))
	c.Source.Device = envStr("SONIDO_PULSE_DEVICE", c.Source.Device)
	c.Source.Path = envStr("SONIDO_PULSE_WAV", c.Source.Path)
	c.Metrics.Enabled = envBool("SONIDO_PULSE_METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Address = envStr("SONIDO_PULSE_METRICS_ADDRESS", c.Metrics.Address)
}

// Validate checks every constraint the detector relies on.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}

	check(c.Mode == ModeAdaptive || c.Mode == ModeConstant, "unknown mode %q", c.Mode)
	check(c.Audio.SampleRate > 0, "sample_rate must be positive")
	check(c.Audio.FrameLength > 0, "frame_length must be positive")
	check(c.Audio.SilenceThresholdDB <= 0, "silence_threshold_db must not be above 0 dBFS")

	s := c.Spectrum
	check(s.Bands > 0, "bands must be positive")
	check(s.EdgeChop >= 0, "edge_chop must not be negative")
	check(s.RetainDivisor > 0, "retain_divisor must be positive")
	check(s.MagnitudeDivisor > 0, "magnitude_divisor must be positive")
	check(s.BassBand >= 0 && s.BassBand < s.Bands, "bass_band %d outside 0..%d", s.BassBand, s.Bands-1)
	check(s.Window == spectral.WindowNone || s.Window == spectral.WindowHann || s.Window == "", "unknown window %q", s.Window)
	if s.Bands > 0 && s.EdgeChop >= 0 && s.RetainDivisor > 0 {
		minLength := (s.Bands + 2*s.EdgeChop) * s.RetainDivisor
		check(c.Audio.FrameLength >= minLength, "frame_length %d below %d needed for %d bands", c.Audio.FrameLength, minLength, s.Bands)
	}

	b := c.Beat
	check(b.SampleRange >= 2, "sample_range must be at least 2")
	check(b.MaxBeatSamples > 0, "max_beat_samples must be positive")
	check(b.AllowableError > 0 && b.AllowableError <= 0.5, "allowable_error must be in (0, 0.5]")
	check(b.InitialBPM > 0, "initial_bpm must be positive")

	check(c.Sink.Address != "", "sink address is required")
	check(c.Sink.Port > 0 && c.Sink.Port < 65536, "sink port %d out of range", c.Sink.Port)

	if c.Mode == ModeAdaptive {
		switch c.Source.Kind {
		case SourceCapture:
			check(len(c.Source.Command) > 0 || c.Source.FFmpegPath != "", "capture needs ffmpeg_path or command")
		case SourceWAV:
			check(c.Source.Path != "", "wav source needs a path")
		case SourceStdin:
		default:
			check(false, "unknown source kind %q", c.Source.Kind)
		}
	}

	if c.Metrics.Enabled {
		check(c.Metrics.Address != "", "metrics address is required when enabled")
	}

	return errors.Join(errs...)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
