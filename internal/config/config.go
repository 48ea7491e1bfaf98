// Package config loads rack configuration from file and environment.
// Environment variables use RACK_ prefix, nested keys are joined with
// underscore: RACK_OUTPUT_PATH.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"pipelined.dev/rack/effect"
	"pipelined.dev/rack/signal"
)

// ErrInvalid is returned when loaded configuration cannot be used.
var ErrInvalid = errors.New("invalid config")

// DefaultFrequency of generator inputs in Hz.
const DefaultFrequency = 440

// Input is either a decoded file or a generator mixed into the rack.
type Input struct {
	Path string `mapstructure:"path"`
	// Waveform names the generator: sine, square, sawtooth, triangle or
	// noise.
	Waveform  string  `mapstructure:"waveform"`
	Frequency float64 `mapstructure:"frequency"`
	Gain      float64 `mapstructure:"gain"`
	Pan       float64 `mapstructure:"pan"`
	Mute      bool    `mapstructure:"mute"`
	Loop      bool    `mapstructure:"loop"`
}

// Endless reports if input never ends: generators and looped files.
func (in Input) Endless() bool {
	return in.Waveform != "" || in.Loop
}

// Effect is an entry of mixer effect chain.
type Effect struct {
	Name   string             `mapstructure:"name"`
	Params map[string]float64 `mapstructure:"params"`
}

// Output is either a file or a device of backend.
type Output struct {
	Path    string `mapstructure:"path"`
	Backend string `mapstructure:"backend"`
	// BitRate and Quality are used for mp3 files.
	BitRate int `mapstructure:"bit_rate"`
	Quality int `mapstructure:"quality"`
}

// Log configures the shared logger.
type Log struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Config of rack render.
type Config struct {
	SampleRate uint          `mapstructure:"sample_rate"`
	Channels   int           `mapstructure:"channels"`
	BitDepth   int           `mapstructure:"bit_depth"`
	BufferSize int           `mapstructure:"buffer_size"`
	Duration   time.Duration `mapstructure:"duration"`
	// Type is the mixer type: realtime or offline.
	Type string `mapstructure:"type"`
	// Mixer holds values of mixer controls by name.
	Mixer   map[string]float64 `mapstructure:"mixer"`
	Inputs  []Input            `mapstructure:"inputs"`
	Effects []Effect           `mapstructure:"effects"`
	Output  Output             `mapstructure:"output"`
	Log     Log                `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sample_rate", 44100)
	v.SetDefault("channels", 2)
	v.SetDefault("bit_depth", 16)
	v.SetDefault("buffer_size", 512)
	v.SetDefault("duration", 0)
	v.SetDefault("type", effect.Offline.String())
	v.SetDefault("output.path", "")
	v.SetDefault("output.backend", "")
	v.SetDefault("output.bit_rate", 192)
	v.SetDefault("output.quality", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// Load reads the config file, empty path loads defaults and environment
// only. Input gain defaults to 1.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("rack")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	raw, _ := v.Get("inputs").([]interface{})
	for i, in := range raw {
		if m, ok := in.(map[string]interface{}); ok && i < len(c.Inputs) {
			if _, ok := m["gain"]; !ok {
				c.Inputs[i].Gain = 1
			}
		}
	}
	for i, in := range c.Inputs {
		if in.Waveform != "" && in.Frequency == 0 {
			c.Inputs[i].Frequency = DefaultFrequency
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Format returns the render format.
func (c *Config) Format() signal.Format {
	return signal.Format{
		SampleRate: signal.SampleRate(c.SampleRate),
		Channels:   c.Channels,
		BitDepth:   signal.BitDepth(c.BitDepth),
	}
}

// Endless reports if render never ends without duration. Mixer stops when
// all inputs are exhausted, so one endless input is enough.
func (c *Config) Endless() bool {
	if len(c.Inputs) == 0 {
		return true
	}
	for _, in := range c.Inputs {
		if in.Endless() {
			return true
		}
	}
	return false
}

// MixerType returns parsed mixer type.
func (c *Config) MixerType() (effect.Type, error) {
	return effect.ParseType(c.Type)
}

// Validate checks that config can be rendered.
func (c *Config) Validate() error {
	if err := c.Format().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("%w: buffer size %d", ErrInvalid, c.BufferSize)
	}
	if c.Duration < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalid)
	}
	if _, err := c.MixerType(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Output.Path == "" && c.Output.Backend == "" {
		return fmt.Errorf("%w: output requires path or backend", ErrInvalid)
	}
	if c.Output.Path != "" && c.Output.Backend != "" {
		return fmt.Errorf("%w: output path and backend are exclusive", ErrInvalid)
	}
	for i, in := range c.Inputs {
		if in.Path == "" && in.Waveform == "" {
			return fmt.Errorf("%w: input %d without path or waveform", ErrInvalid, i)
		}
		if in.Path != "" && in.Waveform != "" {
			return fmt.Errorf("%w: input %d path and waveform are exclusive", ErrInvalid, i)
		}
	}
	for i, e := range c.Effects {
		if e.Name == "" {
			return fmt.Errorf("%w: effect %d without name", ErrInvalid, i)
		}
	}
	return nil
}
