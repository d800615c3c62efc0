package config

import (
	"io/fs"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const (
	// EnvPrefix prefixes every configuration environment variable.
	EnvPrefix = "BREATHWAY_"

	// FileEnvVar names the YAML file to load.
	FileEnvVar = EnvPrefix + "CONFIG_FILE"

	// envNestDelim separates nesting levels in variable names:
	// BREATHWAY_ENGINE__POOL_WIDTH sets engine.pool_width.
	envNestDelim = "__"
)

// listKeys are split on commas when set from the environment.
var listKeys = map[string]bool{
	"worker.kinds": true,
}

// Options controls where Load looks for configuration.
type Options struct {
	// File is an optional YAML file. Empty falls back to $BREATHWAY_CONFIG_FILE.
	File string

	// DotEnv files are loaded into the environment first. Missing files are
	// skipped and variables already set win.
	DotEnv []string
}

// Load builds the configuration from defaults, the YAML file and the
// environment, and validates the result.
func Load(opts Options) (*Config, error) {
	for _, path := range opts.DotEnv {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(err, "load %s", path)
		}
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, errors.Wrap(err, "load defaults")
	}

	path := opts.File
	if path == "" {
		path = os.Getenv(FileEnvVar)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: transformEnv,
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables")
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cfg against its field constraints.
func Validate(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}

// transformEnv maps BREATHWAY_CACHE__EXPOSURE_TTL to cache.exposure_ttl.
func transformEnv(k, v string) (string, any) {
	key := strings.ToLower(strings.TrimPrefix(k, EnvPrefix))
	if key == "config_file" {
		return "", nil
	}
	key = strings.ReplaceAll(key, envNestDelim, ".")

	if listKeys[key] {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return key, out
	}
	return key, v
}
