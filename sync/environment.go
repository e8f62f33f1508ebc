package sync

import (
	"fmt"
	"io/fs"
	"strings"
)

// DefaultEnvVar is the composite env var holding secrets and the config path as JSON.
const DefaultEnvVar = "TRACKSYNC"

// configOptions holds optional configuration for LoadConfigFromEnvironment.
type configOptions struct {
	envVar string
	fsys   fs.FS
}

// ConfigOption is a functional option for configuring LoadConfigFromEnvironment.
type ConfigOption func(*configOptions)

// ConfigWithEnvVar sets the composite env var used for ${VAR} expansion.
func ConfigWithEnvVar(name string) ConfigOption {
	return func(o *configOptions) {
		o.envVar = name
	}
}

// ConfigWithFS reads config files from fsys instead of the OS filesystem.
func ConfigWithFS(fsys fs.FS) ConfigOption {
	return func(o *configOptions) {
		o.fsys = fsys
	}
}

// LoadConfigFromEnvironment layers the built in defaults and the given config files,
// later files taking precedence. When no paths are given, the CONFIG_PATH key of the
// composite env var is used (a comma separated list), if present.
// The result is not validated.
func LoadConfigFromEnvironment(paths []string, opts ...ConfigOption) (Config, error) {
	options := configOptions{envVar: DefaultEnvVar}
	for _, opt := range opts {
		opt(&options)
	}

	compositeEnvVar := JSONCompositeEnvVar{Parent: options.envVar}

	if len(paths) == 0 {
		if p, ok := compositeEnvVar.LookupEnv("CONFIG_PATH"); ok && p != "" {
			for _, s := range strings.Split(p, ",") {
				if s = strings.TrimSpace(s); s != "" {
					paths = append(paths, s)
				}
			}
		}
	}

	sources := []MappingFile{DefaultsMappingFile()}
	for _, p := range paths {
		f, err := FindMappingFile(options.fsys, p)
		if err != nil {
			return Config{}, err
		}
		sources = append(sources, f)
	}

	result, err := YAMLConfigUnmarshaler{}.Unmarshal(compositeEnvVar, sources...)
	if err != nil {
		return result, fmt.Errorf("failed to load config %w", err)
	}
	return result, nil
}
