// Package config loads the immutable service configuration. Values are
// parsed once at startup and passed into constructors; nothing here is
// mutated afterwards.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses human-readable durations ("8s", "100ms") from YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Verification holds every threshold and timing window of the challenge
// engine. The zero value is not usable; start from DefaultVerification.
type Verification struct {
	BlinkThreshold           float64  `yaml:"blink_threshold"`
	SmileThreshold           float64  `yaml:"smile_threshold"`
	HeadPoseThreshold        float64  `yaml:"head_pose_threshold"`
	LipSyncThreshold         float64  `yaml:"lip_sync_threshold"`
	VoiceSimilarityThreshold float64  `yaml:"voice_similarity_threshold"`
	SmoothingSigma           float64  `yaml:"smoothing_sigma"`
	SampleRate               int      `yaml:"sample_rate"`
	EnergyWindow             int      `yaml:"energy_window"`
	MinLipFrames             int      `yaml:"min_lip_frames"`
	RequiredBlinks           int      `yaml:"required_blinks"`
	BlinkDebounce            Duration `yaml:"blink_debounce"`
	FaceChallengeTimeout     Duration `yaml:"face_challenge_timeout"`
	VoiceCountdown           Duration `yaml:"voice_countdown"`
	RecordingWindow          Duration `yaml:"recording_window"`
	PollInterval             Duration `yaml:"poll_interval"`
	SessionTTL               Duration `yaml:"session_ttl"`
}

// DefaultVerification returns the standard thresholds and windows.
func DefaultVerification() Verification {
	return Verification{
		BlinkThreshold:           0.25,
		SmileThreshold:           0.6,
		HeadPoseThreshold:        15.0,
		LipSyncThreshold:         0.3,
		VoiceSimilarityThreshold: 0.85,
		SmoothingSigma:           5,
		SampleRate:               16000,
		EnergyWindow:             1024,
		MinLipFrames:             10,
		RequiredBlinks:           2,
		BlinkDebounce:            Duration(500 * time.Millisecond),
		FaceChallengeTimeout:     Duration(8 * time.Second),
		VoiceCountdown:           Duration(3 * time.Second),
		RecordingWindow:          Duration(5 * time.Second),
		PollInterval:             Duration(100 * time.Millisecond),
		SessionTTL:               Duration(2 * time.Minute),
	}
}

// Config is the full service configuration.
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backend struct {
		BaseURL    string   `yaml:"base_url"`
		APIKey     string   `yaml:"api_key"`
		Timeout    Duration `yaml:"timeout"`
		MaxRetries int      `yaml:"max_retries"`
		RetryDelay Duration `yaml:"retry_delay"`
	} `yaml:"backend"`

	Encoder struct {
		URL string `yaml:"url"`
	} `yaml:"encoder"`

	Signing struct {
		PrivateKey     string `yaml:"private_key"`
		Scheme         string `yaml:"scheme"` // "personal" or "digest"
		FallbackSecret string `yaml:"fallback_secret"`
	} `yaml:"signing"`

	Verification Verification `yaml:"verification"`
}

// Load reads and parses the YAML configuration at path, filling defaults
// for anything unset.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	cfg := &Config{Verification: DefaultVerification()}
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":9000"
	}
	if cfg.Redis.URL == "" {
		cfg.Redis.URL = "redis://localhost:6379/0"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "presence.db"
	}
	if cfg.Backend.MaxRetries == 0 {
		cfg.Backend.MaxRetries = 3
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = Duration(10 * time.Second)
	}
	if cfg.Backend.RetryDelay == 0 {
		cfg.Backend.RetryDelay = Duration(2 * time.Second)
	}
	if cfg.Signing.Scheme == "" {
		cfg.Signing.Scheme = "personal"
	}
	return cfg, nil
}
