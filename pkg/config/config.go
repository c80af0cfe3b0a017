package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fulmenhq/assetneat/pkg/assetref"
	"github.com/fulmenhq/assetneat/pkg/logger"
	"github.com/fulmenhq/assetneat/pkg/pathutil"
	"github.com/fulmenhq/assetneat/pkg/pipeline"
	"github.com/fulmenhq/assetneat/pkg/transform"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ASSETNEAT_WORKERS.
const EnvPrefix = "ASSETNEAT"

// Config holds all configuration for assetneat. Keys follow the camelCase
// names used in project config files; viper matches them case-insensitively.
type Config struct {
	ExcludeFolder   string   `mapstructure:"excludeFolder"`
	ExcludePatterns []string `mapstructure:"excludePatterns"`
	NoIgnore        bool     `mapstructure:"noIgnore"`

	UseBabel      Toggle[transform.ScriptOptions] `mapstructure:"useBabel"`
	UsePostCSS    Toggle[transform.StyleOptions]  `mapstructure:"usePostCSS"`
	UseVersioning Toggle[assetref.Options]        `mapstructure:"useVersioning"`
	UseLog        Toggle[LogConfig]               `mapstructure:"useLog"`

	JSMinifyOptions  transform.ScriptMinifyOptions `mapstructure:"jsMinifyOptions"`
	CSSMinifyOptions transform.StyleMinifyOptions  `mapstructure:"cssMinifyOptions"`

	UseJSMap  bool `mapstructure:"useJsMap"`
	UseCSSMap bool `mapstructure:"useCssMap"`

	Workers     int           `mapstructure:"workers"`
	FileTimeout time.Duration `mapstructure:"fileTimeout"`
	Precompress []string      `mapstructure:"precompress"`
	MetricsFile string        `mapstructure:"metricsFile"`

	Report ReportConfig `mapstructure:"report"`
}

// LogConfig configures the dated log file and the summary/error log blocks.
type LogConfig struct {
	LogDir        string `mapstructure:"logDir"`
	RetentionDays int    `mapstructure:"retentionDays"`
}

// ReportConfig selects an optional machine-readable run report.
type ReportConfig struct {
	File   string `mapstructure:"file"`
	Format string `mapstructure:"format"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		UseLog:  Toggle[LogConfig]{Options: LogConfig{LogDir: logger.DefaultLogDir, RetentionDays: logger.DefaultRetentionDays}},
		Workers: 1,
		JSMinifyOptions: transform.ScriptMinifyOptions{
			Backend: string(transform.BackendTdewolff),
		},
		CSSMinifyOptions: transform.StyleMinifyOptions{
			Backend: string(transform.BackendTdewolff),
		},
	}
}

// FlagKeys maps config keys to the cobra flag names bound to them. Toggle
// options are not bound here; see ToggleFlags and applyToggleFlags.
var FlagKeys = map[string]string{
	"excludeFolder":   "exclude-folder",
	"excludePatterns": "exclude",
	"noIgnore":        "no-ignore",
	"useJsMap":        "js-map",
	"useCssMap":       "css-map",
	"workers":         "workers",
	"fileTimeout":     "file-timeout",
	"precompress":     "precompress",
	"metricsFile":     "metrics-file",
	"report.file":     "report",
	"report.format":   "report-format",
}

// envOnlyKeys have no default and would otherwise be invisible to
// AutomaticEnv when no file sets them.
var envOnlyKeys = []string{
	"excludePatterns",
	"useBabel",
	"usePostCSS",
	"useVersioning",
	"useLog",
	"precompress",
	"metricsFile",
	"report.file",
	"report.format",
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// Root is the directory searched for a project config file.
	Root string
	// File is an explicit config file. It overrides project discovery.
	File string
	// Flags, when set, are bound with BindPFlag using FlagKeys.
	Flags *pflag.FlagSet
	// NoUserConfig skips ~/.assetneat/config.*.
	NoUserConfig bool
}

// Loaded is a resolved configuration and the sources it came from.
type Loaded struct {
	Config  Config
	Sources []string
}

// Load resolves configuration with precedence defaults < user file <
// project file < explicit file < environment < changed flags.
func Load(opts LoadOptions) (*Loaded, error) {
	v := viper.New()
	setDefaults(v, Defaults())

	h := NewHierarchy()
	if !opts.NoUserConfig {
		if dir, err := GetHome(); err == nil {
			if path, ok := findConfigFile(dir, "config"); ok {
				h.AddSource(NewFileSource(path, PriorityUser))
			}
		}
	}
	if opts.File != "" {
		h.AddSource(NewFileSource(opts.File, PriorityExplicit))
	} else if opts.Root != "" {
		if path, ok := ProjectFile(opts.Root); ok {
			h.AddSource(NewFileSource(path, PriorityProject))
		}
	}
	sources, err := h.Merge(v)
	if err != nil {
		return nil, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only sees keys viper already knows about.
	for _, key := range envOnlyKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if opts.Flags != nil {
		if err := bindFlags(v, opts.Flags); err != nil {
			return nil, err
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if opts.Flags != nil {
		if err := applyToggleFlags(&cfg, opts.Flags); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Loaded{Config: cfg, Sources: sources}, nil
}

func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		toggleHook,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("excludeFolder", d.ExcludeFolder)
	v.SetDefault("noIgnore", d.NoIgnore)
	v.SetDefault("jsMinifyOptions.backend", d.JSMinifyOptions.Backend)
	v.SetDefault("cssMinifyOptions.backend", d.CSSMinifyOptions.Backend)
	v.SetDefault("useJsMap", d.UseJSMap)
	v.SetDefault("useCssMap", d.UseCSSMap)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("fileTimeout", d.FileTimeout)
}

// bindFlags binds only flags that exist so commands may define a subset.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for key, name := range FlagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// Validate checks values the schema cannot express and normalizes
// excludeFolder.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.FileTimeout < 0 {
		return fmt.Errorf("fileTimeout must not be negative, got %s", c.FileTimeout)
	}
	folder, err := pathutil.NormalizeFolder(c.ExcludeFolder)
	if err != nil {
		return fmt.Errorf("excludeFolder: %w", err)
	}
	c.ExcludeFolder = folder
	return nil
}

// PipelineOptions converts the configuration into run options.
func (c *Config) PipelineOptions() pipeline.Options {
	opts := pipeline.Options{
		ExcludeFolder:   c.ExcludeFolder,
		ExcludePatterns: c.ExcludePatterns,
		NoIgnore:        c.NoIgnore,
		ScriptMinify:    c.JSMinifyOptions,
		StyleMinify:     c.CSSMinifyOptions,
		ScriptSourceMap: c.UseJSMap,
		StyleSourceMap:  c.UseCSSMap,
		Workers:         c.Workers,
		FileTimeout:     c.FileTimeout,
		Precompress:     c.Precompress,
		MetricsFile:     c.MetricsFile,
	}
	if c.UseBabel.Enabled {
		sopts := c.UseBabel.Options
		opts.ScriptTransform = &sopts
	}
	if c.UsePostCSS.Enabled {
		sopts := c.UsePostCSS.Options
		if len(sopts.Browsers) == 0 {
			sopts.Browsers = transform.DefaultStyleBrowsers
		}
		opts.StyleTransform = &sopts
	}
	if c.UseVersioning.Enabled {
		vopts := c.UseVersioning.Options
		opts.Versioning = &vopts
	}
	if c.UseLog.Enabled {
		opts.Log = &logger.FileOptions{Dir: c.UseLog.Options.LogDir, RetentionDays: c.UseLog.Options.RetentionDays}
	}
	return opts
}

// GetHome returns the assetneat home directory, ASSETNEAT_HOME or ~/.assetneat.
func GetHome() (string, error) {
	if home := os.Getenv(EnvPrefix + "_HOME"); home != "" {
		return home, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".assetneat"), nil
}
