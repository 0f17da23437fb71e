// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Typed runtime configuration: defaults, file loading (TOML or YAML by
// extension), environment overrides and validation.

package control

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the default prefix of environment overrides.
const EnvPrefix = "HIOLOAD_"

// ErrUnknownFormat rejects config files with an unsupported extension.
var ErrUnknownFormat = errors.New("unknown config file format")

// Config is the full runtime configuration.
type Config struct {
	Server      ServerConfig      `toml:"server" yaml:"server"`
	EventLoop   EventLoopConfig   `toml:"event_loop" yaml:"event_loop"`
	Channel     ChannelConfig     `toml:"channel" yaml:"channel"`
	Logging     LoggingConfig     `toml:"logging" yaml:"logging"`
	Diagnostics DiagnosticsConfig `toml:"diagnostics" yaml:"diagnostics"`
}

// ServerConfig is used by the bundled examples.
type ServerConfig struct {
	Address string `toml:"address" yaml:"address" validate:"required,hostname_port"`
}

// EventLoopConfig sizes the event-loop group.
type EventLoopConfig struct {
	// Threads is the number of loops; 0 means one per CPU.
	Threads int `toml:"threads" yaml:"threads" validate:"gte=0,lte=1024"`
	// BatchSize caps the tasks run per wakeup.
	BatchSize int `toml:"batch_size" yaml:"batch_size" validate:"gte=1,lte=65536"`
	// PinCPUs optionally pins loop i to PinCPUs[i % len(PinCPUs)].
	PinCPUs []int `toml:"pin_cpus" yaml:"pin_cpus" validate:"dive,gte=0"`
	// ShutdownTimeoutMillis bounds graceful shutdown.
	ShutdownTimeoutMillis int `toml:"shutdown_timeout_ms" yaml:"shutdown_timeout_ms" validate:"gte=0"`
}

// ChannelConfig holds per-channel defaults.
type ChannelConfig struct {
	AutoRead       bool `toml:"auto_read" yaml:"auto_read"`
	ReadBufferSize int  `toml:"read_buffer_size" yaml:"read_buffer_size" validate:"gte=64,lte=16777216"`
}

// LoggingConfig selects level and output format.
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" yaml:"format" validate:"oneof=text json"`
}

// DiagnosticsConfig tunes the diagnostic sink.
type DiagnosticsConfig struct {
	// LogUnhandledMessages logs messages that reached the pipeline tail.
	LogUnhandledMessages bool `toml:"log_unhandled_messages" yaml:"log_unhandled_messages"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Address: "127.0.0.1:9000"},
		EventLoop: EventLoopConfig{
			Threads:               0,
			BatchSize:             64,
			ShutdownTimeoutMillis: 5000,
		},
		Channel: ChannelConfig{
			AutoRead:       true,
			ReadBufferSize: 4096,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Diagnostics: DiagnosticsConfig{
			LogUnhandledMessages: true,
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := Decode(path, data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode unmarshals data into cfg, choosing the format from name's extension.
func Decode(name string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parsing %s: %w", name, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parsing %s: %w", name, err)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, name)
	}
	return nil
}

// ApplyEnv overrides cfg from environment variables named prefix+KEY.
func (c *Config) ApplyEnv(prefix string) error {
	return c.applyEnv(prefix, os.LookupEnv)
}

func (c *Config) applyEnv(prefix string, lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(prefix + key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(prefix + key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", prefix, key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(prefix + key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", prefix, key, err))
				return
			}
			*dst = b
		}
	}

	str("SERVER_ADDRESS", &c.Server.Address)
	num("EVENT_LOOP_THREADS", &c.EventLoop.Threads)
	num("EVENT_LOOP_BATCH_SIZE", &c.EventLoop.BatchSize)
	num("EVENT_LOOP_SHUTDOWN_TIMEOUT_MS", &c.EventLoop.ShutdownTimeoutMillis)
	if v, ok := lookup(prefix + "EVENT_LOOP_PIN_CPUS"); ok {
		cpus, err := parseIntList(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sEVENT_LOOP_PIN_CPUS: %w", prefix, err))
		} else {
			c.EventLoop.PinCPUs = cpus
		}
	}
	flag("CHANNEL_AUTO_READ", &c.Channel.AutoRead)
	num("CHANNEL_READ_BUFFER_SIZE", &c.Channel.ReadBufferSize)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	flag("DIAGNOSTICS_LOG_UNHANDLED_MESSAGES", &c.Diagnostics.LogUnhandledMessages)
	return errors.Join(errs...)
}

func parseIntList(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validate checks every field against its validate tag.
func (c *Config) Validate() error {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadAndValidate loads path, applies environment overrides and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(EnvPrefix); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
