package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the nubmoan daemon.
//
// Trigger thresholds live in constants.go and have no config keys.
type Config struct {
	// Pointer input devices
	Input InputConfig `yaml:"input"`

	// Sound assets and playback backend
	Audio AudioConfig `yaml:"audio"`

	// IPC configuration (motion injection and status queries)
	IPC IPCConfig `yaml:"ipc"`

	// State WebSocket (cue notifications)
	StateWS StateWSConfig `yaml:"state_ws"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

type InputConfig struct {
	// Devices to monitor. Empty means scan /dev/input for relative pointer devices.
	Devices []string `yaml:"devices,omitempty"`
}

type AudioConfig struct {
	Dir     string   `yaml:"dir"`               // directory holding file1.wav .. file10.wav
	Backend string   `yaml:"backend"`           // "pulse" or "exec"
	Command string   `yaml:"command,omitempty"` // exec backend only
	Args    []string `yaml:"args,omitempty"`    // exec backend only, placed before the file path
}

type IPCConfig struct {
	Enabled    bool   `yaml:"enabled"`
	SocketPath string `yaml:"socket_path"`
}

type StateWSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Audio backends
const (
	AudioBackendPulse = "pulse"
	AudioBackendExec  = "exec"
)

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	return Config{
		Audio: AudioConfig{
			Dir:     defaultSoundDir,
			Backend: AudioBackendPulse,
			Command: defaultExecCommand,
		},
		IPC: IPCConfig{
			Enabled:    true,
			SocketPath: defaultIPCSocket,
		},
		StateWS: StateWSConfig{
			Enabled: false,
			Listen:  defaultStateWSAddr,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of the defaults.
//
// Unknown fields are rejected (helps catch typos) via KnownFields(true).
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments may follow the document. Decode into a node so
	// KnownFields cannot turn a second document into a swallowed error.
	var trailing yaml.Node
	if err := dec.Decode(&trailing); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides holds values from flags that were explicitly set.
// A nil pointer means "not set"; a non-nil pointer is applied even if it is a zero value.
type FlagOverrides struct {
	Devices []string

	SoundDir     *string
	AudioBackend *string
	AudioCommand *string

	IPCEnabled    *bool
	IPCSocketPath *string

	StateWSEnabled *bool
	StateWSListen  *string

	LogLevel *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if len(o.Devices) > 0 {
		cfg.Input.Devices = append([]string(nil), o.Devices...)
	}

	if o.SoundDir != nil {
		cfg.Audio.Dir = *o.SoundDir
	}
	if o.AudioBackend != nil {
		cfg.Audio.Backend = *o.AudioBackend
	}
	if o.AudioCommand != nil {
		cfg.Audio.Command = *o.AudioCommand
	}

	if o.IPCEnabled != nil {
		cfg.IPC.Enabled = *o.IPCEnabled
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}

	if o.StateWSEnabled != nil {
		cfg.StateWS.Enabled = *o.StateWSEnabled
	}
	if o.StateWSListen != nil {
		cfg.StateWS.Listen = *o.StateWSListen
	}

	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// This is intended to be called after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	for i, dev := range c.Input.Devices {
		if dev == "" {
			return fmt.Errorf("input.devices[%d] is empty", i)
		}
	}

	// Audio
	if c.Audio.Dir == "" {
		return errors.New("audio.dir must not be empty")
	}
	switch c.Audio.Backend {
	case AudioBackendPulse:
	case AudioBackendExec:
		if c.Audio.Command == "" {
			return errors.New("audio.command must not be empty for the exec backend")
		}
	default:
		return fmt.Errorf("audio.backend must be %q or %q", AudioBackendPulse, AudioBackendExec)
	}

	// IPC
	if c.IPC.Enabled && c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty when ipc is enabled")
	}

	// State WS
	if c.StateWS.Enabled && c.StateWS.Listen == "" {
		return errors.New("state_ws.listen must not be empty when state_ws is enabled")
	}

	// Logging
	if c.Logging.Level == "" {
		return errors.New("logging.level must not be empty")
	}
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
