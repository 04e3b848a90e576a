// Package settings loads typed application settings.
//
// Values are resolved in order, later sources overriding earlier ones:
// built-in defaults, an optional YAML file, a .env file and finally
// LILYA_* environment variables. Variables set in the process environment
// win over the same keys in the .env file.
package settings

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/vitalvas/lilya/logger"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "LILYA_"

// Settings are the application settings.
type Settings struct {
	Debug           bool          `yaml:"debug"`
	Address         string        `yaml:"address"`
	RootPath        string        `yaml:"root_path"`
	AllowedHosts    []string      `yaml:"allowed_hosts"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RedirectSlashes bool          `yaml:"redirect_slashes"`

	LogLevel          string `yaml:"log_level"`
	LogFormat         string `yaml:"log_format"`
	SentryDSN         string `yaml:"sentry_dsn"`
	SentryEnvironment string `yaml:"sentry_environment"`

	CORSOrigins     []string `yaml:"cors_origins"`
	GZipMinimumSize int      `yaml:"gzip_minimum_size"`
}

// Default returns the built-in settings.
func Default() *Settings {
	return &Settings{
		Address:         ":8000",
		ShutdownTimeout: 10 * time.Second,
		RedirectSlashes: true,
		LogLevel:        "info",
		LogFormat:       "json",
		GZipMinimumSize: 500,
	}
}

// Load resolves settings from the YAML file at path (skipped when empty)
// and from envFiles (".env" when none are given; missing files are
// ignored), then the environment. The result is validated.
func Load(path string, envFiles ...string) (*Settings, error) {
	s := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("settings: %w", err)
		}
		if err := s.decodeYAML(data); err != nil {
			return nil, fmt.Errorf("settings: %s: %w", path, err)
		}
	}

	dotenv, err := readEnvFiles(envFiles)
	if err != nil {
		return nil, err
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := s.applyEnv(lookup); err != nil {
		return nil, err
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// decodeYAML overlays data on s. Unknown keys are errors.
func (s *Settings) decodeYAML(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func readEnvFiles(files []string) (map[string]string, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}

	out := make(map[string]string)
	for _, f := range files {
		values, err := godotenv.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("settings: %s: %w", f, err)
		}
		for k, v := range values {
			if _, seen := out[k]; !seen {
				out[k] = v
			}
		}
	}
	return out, nil
}

// applyEnv overlays LILYA_* variables found by lookup.
func (s *Settings) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error

	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	list := func(name string, dst *[]string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = splitList(v)
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("settings: %s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	boolean("DEBUG", &s.Debug)
	str("ADDRESS", &s.Address)
	str("ROOT_PATH", &s.RootPath)
	list("ALLOWED_HOSTS", &s.AllowedHosts)
	boolean("REDIRECT_SLASHES", &s.RedirectSlashes)
	str("LOG_LEVEL", &s.LogLevel)
	str("LOG_FORMAT", &s.LogFormat)
	str("SENTRY_DSN", &s.SentryDSN)
	str("SENTRY_ENVIRONMENT", &s.SentryEnvironment)
	list("CORS_ORIGINS", &s.CORSOrigins)

	if v, ok := lookup(EnvPrefix + "SHUTDOWN_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("settings: %sSHUTDOWN_TIMEOUT: %w", EnvPrefix, err))
		} else {
			s.ShutdownTimeout = d
		}
	}
	if v, ok := lookup(EnvPrefix + "GZIP_MINIMUM_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("settings: %sGZIP_MINIMUM_SIZE: %w", EnvPrefix, err))
		} else {
			s.GZipMinimumSize = n
		}
	}

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports every invalid value.
func (s *Settings) Validate() error {
	var errs []error

	if _, _, err := net.SplitHostPort(s.Address); err != nil {
		errs = append(errs, fmt.Errorf("settings: address %q: %w", s.Address, err))
	}
	if s.RootPath != "" && !strings.HasPrefix(s.RootPath, "/") {
		errs = append(errs, fmt.Errorf("settings: root path %q must start with a slash", s.RootPath))
	}
	if s.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("settings: negative shutdown timeout %s", s.ShutdownTimeout))
	}
	for _, h := range s.AllowedHosts {
		if strings.TrimSpace(h) == "" {
			errs = append(errs, errors.New("settings: empty allowed host"))
			break
		}
	}
	if _, err := logger.ParseLevel(s.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("settings: %w", err))
	}
	switch strings.ToLower(s.LogFormat) {
	case "", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("settings: invalid log format %q", s.LogFormat))
	}

	return errors.Join(errs...)
}

// Logger returns the logger configuration described by s.
func (s *Settings) Logger() logger.Config {
	cfg := logger.Config{
		Level:             s.LogLevel,
		Format:            s.LogFormat,
		SentryDSN:         s.SentryDSN,
		SentryEnvironment: s.SentryEnvironment,
	}
	if s.Debug && cfg.Level == "info" {
		cfg.Level = "debug"
	}
	return cfg
}
