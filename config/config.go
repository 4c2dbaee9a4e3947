// Package config loads settings from config.yaml, COMPACTOR_* environment
// variables and built-in defaults.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/riadafridishibly/compactor/estimator"
	"github.com/riadafridishibly/compactor/runner"
	"github.com/riadafridishibly/compactor/scanner"
)

const EnvPrefix = "COMPACTOR"

type Config struct {
	Journal struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"journal"`
	Log struct {
		Level    string `mapstructure:"level"`
		File     string `mapstructure:"file"`
		Encoding string `mapstructure:"encoding"`
	} `mapstructure:"log"`
	Scan struct {
		FollowReparsePoints bool     `mapstructure:"follow_reparse_points"`
		LargeFileThreshold  int64    `mapstructure:"large_file_threshold"`
		SampleBlocks        int      `mapstructure:"sample_blocks"`
		SampleBlockSize     int      `mapstructure:"sample_block_size"`
		MinSavingsRatio     float64  `mapstructure:"min_savings_ratio"`
		ExcludedExtensions  []string `mapstructure:"excluded_extensions"`
		ExcludedFolders     []string `mapstructure:"excluded_folders"`
		Codec               string   `mapstructure:"codec"`
	} `mapstructure:"scan"`
	Runner struct {
		Tool            string        `mapstructure:"tool"`
		Quiet           bool          `mapstructure:"quiet"`
		Force           bool          `mapstructure:"force"`
		ContinueOnError bool          `mapstructure:"continue_on_error"`
		Heartbeat       time.Duration `mapstructure:"heartbeat"`
		OutputCodepage  int           `mapstructure:"output_codepage"`
		MaxErrorLines   int           `mapstructure:"max_error_lines"`
	} `mapstructure:"runner"`

	// ConfigFile is the file that was read, empty when only defaults apply.
	ConfigFile string `mapstructure:"-"`
}

// Load reads configuration. A missing config file is not an error; file is
// an explicit path and may be empty.
func Load(file string) (*Config, error) {
	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "compactor"))
		}
		v.AddConfigPath("$HOME/.config/compactor")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	cfg.ConfigFile = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	journalPath := ""
	if dir, err := os.UserCacheDir(); err == nil {
		journalPath = filepath.Join(dir, "compactor", "journal.db")
	}
	logFile := ""
	if dir, err := os.UserCacheDir(); err == nil {
		logFile = filepath.Join(dir, "compactor", "compactor.log")
	}

	scan := scanner.DefaultOptions()
	run := runner.DefaultOptions()

	v.SetDefault("journal.path", journalPath)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", logFile)
	v.SetDefault("log.encoding", "json")

	v.SetDefault("scan.follow_reparse_points", scan.FollowReparsePoints)
	v.SetDefault("scan.large_file_threshold", scan.LargeFileThreshold)
	v.SetDefault("scan.sample_blocks", scan.SampleBlocks)
	v.SetDefault("scan.sample_block_size", scan.SampleBlockSize)
	v.SetDefault("scan.min_savings_ratio", scan.MinSavingsRatio)
	v.SetDefault("scan.excluded_extensions", scan.ExcludedExtensions)
	v.SetDefault("scan.excluded_folders", []string{})
	v.SetDefault("scan.codec", scan.Codec)

	v.SetDefault("runner.tool", runner.DefaultTool)
	v.SetDefault("runner.quiet", run.Quiet)
	v.SetDefault("runner.force", run.Force)
	v.SetDefault("runner.continue_on_error", run.ContinueOnError)
	v.SetDefault("runner.heartbeat", runner.DefaultHeartbeat)
	v.SetDefault("runner.output_codepage", 0)
	v.SetDefault("runner.max_error_lines", runner.DefaultMaxErrorLines)
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	s := c.Scan
	switch {
	case s.LargeFileThreshold < 0:
		return errors.Newf("scan.large_file_threshold must not be negative, got %d", s.LargeFileThreshold)
	case s.SampleBlocks < 0:
		return errors.Newf("scan.sample_blocks must not be negative, got %d", s.SampleBlocks)
	case s.SampleBlockSize < 0:
		return errors.Newf("scan.sample_block_size must not be negative, got %d", s.SampleBlockSize)
	case s.MinSavingsRatio < 0 || s.MinSavingsRatio >= 1:
		return errors.Newf("scan.min_savings_ratio must be in [0, 1), got %g", s.MinSavingsRatio)
	case c.Runner.Heartbeat < 0:
		return errors.Newf("runner.heartbeat must not be negative, got %s", c.Runner.Heartbeat)
	case c.Runner.MaxErrorLines < 0:
		return errors.Newf("runner.max_error_lines must not be negative, got %d", c.Runner.MaxErrorLines)
	case c.Journal.Path == "":
		return errors.WithHint(errors.New("journal.path is empty"),
			"set journal.path in config.yaml or COMPACTOR_JOURNAL_PATH")
	}
	if _, err := estimator.CodecByName(s.Codec); err != nil {
		return errors.Wrap(err, "scan.codec")
	}
	if _, err := c.OutputEncoding(); err != nil {
		return err
	}
	return nil
}

func (c *Config) ScanOptions() scanner.Options {
	return scanner.Options{
		FollowReparsePoints: c.Scan.FollowReparsePoints,
		LargeFileThreshold:  c.Scan.LargeFileThreshold,
		SampleBlocks:        c.Scan.SampleBlocks,
		SampleBlockSize:     c.Scan.SampleBlockSize,
		Codec:               c.Scan.Codec,
		MinSavingsRatio:     c.Scan.MinSavingsRatio,
		ExcludedExtensions:  c.Scan.ExcludedExtensions,
		ExcludedFolders:     c.Scan.ExcludedFolders,
	}
}

// RunnerOptions are the switches every run starts from.
func (c *Config) RunnerOptions() runner.Options {
	return runner.Options{
		Recursive:       true,
		ContinueOnError: c.Runner.ContinueOnError,
		Force:           c.Runner.Force,
		Quiet:           c.Runner.Quiet,
	}
}

func (c *Config) RunnerConfig() (runner.Config, error) {
	enc, err := c.OutputEncoding()
	if err != nil {
		return runner.Config{}, err
	}
	return runner.Config{
		Tool:          c.Runner.Tool,
		Heartbeat:     c.Runner.Heartbeat,
		MaxErrorLines: c.Runner.MaxErrorLines,
		Encoding:      enc,
	}, nil
}

var codepages = map[int]encoding.Encoding{
	437:  charmap.CodePage437,
	850:  charmap.CodePage850,
	852:  charmap.CodePage852,
	866:  charmap.CodePage866,
	1252: charmap.Windows1252,
}

// OutputEncoding maps runner.output_codepage to a decoder; 0 and 65001 mean
// the output is already UTF-8.
func (c *Config) OutputEncoding() (encoding.Encoding, error) {
	cp := c.Runner.OutputCodepage
	if cp == 0 || cp == 65001 {
		return nil, nil
	}
	enc, ok := codepages[cp]
	if !ok {
		return nil, errors.Newf("runner.output_codepage %d is not supported", cp)
	}
	return enc, nil
}
