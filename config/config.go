// Package config loads the YAML configuration of the bluing command.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/XC-/bluing"
	"github.com/XC-/bluing/hci"
	"github.com/XC-/bluing/oui"
	"github.com/XC-/bluing/scan"
	"github.com/XC-/bluing/sdp"
	"github.com/XC-/bluing/sniff"
)

// Config is the whole configuration. Zero values are filled from Default.
type Config struct {
	// Device is the HCI index, hciN.
	Device  int           `yaml:"device"`
	Inquiry InquiryConfig `yaml:"inquiry"`
	LEScan  LEScanConfig  `yaml:"le_scan"`
	GATT    GATTConfig    `yaml:"gatt"`
	SDP     SDPConfig     `yaml:"sdp"`
	Infer   InferConfig   `yaml:"infer"`
	Sniff   SniffConfig   `yaml:"sniff"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
}

type InquiryConfig struct {
	// DurationUnits is the inquiry length in units of 1.28 s.
	DurationUnits uint8         `yaml:"duration_units"`
	NameTimeout   time.Duration `yaml:"name_timeout"`
	// NameRate paces remote name requests, per second; 0 is unlimited.
	NameRate float64 `yaml:"name_rate"`
}

type LEScanConfig struct {
	Mode             string        `yaml:"mode"`
	Timeout          time.Duration `yaml:"timeout"`
	Sort             string        `yaml:"sort"`
	FilterDuplicates bool          `yaml:"filter_duplicates"`
}

type GATTConfig struct {
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type SDPConfig struct {
	MaxNesting int `yaml:"max_nesting"`
}

type InferConfig struct {
	Match string `yaml:"match"`
	// OUIFile replaces the bundled table; .csv is read as the IEEE registry.
	OUIFile string `yaml:"oui_file"`
}

type SniffConfig struct {
	Devices      []string      `yaml:"devices"`
	Channels     []uint8       `yaml:"channels"`
	Baud         int           `yaml:"baud"`
	ReadyTimeout time.Duration `yaml:"ready_timeout"`
}

type StoreConfig struct {
	// Path of the SQLite database; empty disables storing.
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Inquiry: InquiryConfig{
			DurationUnits: 8,
			NameTimeout:   scan.DefaultNameTimeout,
		},
		LEScan: LEScanConfig{
			Mode:             "active",
			Timeout:          10 * time.Second,
			Sort:             "rssi",
			FilterDuplicates: true,
		},
		GATT: GATTConfig{RequestTimeout: 10 * time.Second},
		SDP:  SDPConfig{MaxNesting: sdp.DefaultMaxDepth},
		Infer: InferConfig{
			Match: oui.Substring.String(),
		},
		Sniff: SniffConfig{
			Channels:     []uint8{37, 38, 39},
			Baud:         1000000,
			ReadyTimeout: sniff.DefaultReadyTimeout,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads the YAML file at path over the defaults, applies BLUING_*
// environment overrides and validates the result. A missing file is not an
// error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, errors.Wrap(err, "read config")
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrap(err, "parse config")
			}
		}
	}
	ApplyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps BLUING_* variables to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BLUING_DEVICE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Device = n
		}
	}
	if v := os.Getenv("BLUING_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("BLUING_STORE"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("BLUING_OUI_FILE"); v != "" {
		cfg.Infer.OUIFile = v
	}
}

// Validate checks every field. Errors wrap bluing.ErrInvalid.
func Validate(cfg *Config) error {
	invalid := func(field string, v interface{}) error {
		return errors.Wrapf(bluing.ErrInvalid, "config %s: %v", field, v)
	}
	if cfg.Device < 0 {
		return invalid("device", cfg.Device)
	}
	if cfg.Inquiry.DurationUnits == 0 || cfg.Inquiry.DurationUnits > hci.MaxInquiryLength {
		return invalid("inquiry.duration_units", cfg.Inquiry.DurationUnits)
	}
	if cfg.Inquiry.NameRate < 0 {
		return invalid("inquiry.name_rate", cfg.Inquiry.NameRate)
	}
	if _, err := scan.ParseMode(cfg.LEScan.Mode); err != nil {
		return invalid("le_scan.mode", cfg.LEScan.Mode)
	}
	if _, err := scan.ParseSortKey(cfg.LEScan.Sort); err != nil {
		return invalid("le_scan.sort", cfg.LEScan.Sort)
	}
	if cfg.LEScan.Timeout <= 0 {
		return invalid("le_scan.timeout", cfg.LEScan.Timeout)
	}
	if cfg.SDP.MaxNesting <= 0 {
		return invalid("sdp.max_nesting", cfg.SDP.MaxNesting)
	}
	if _, err := oui.ParsePolicy(cfg.Infer.Match); err != nil {
		return invalid("infer.match", cfg.Infer.Match)
	}
	for _, ch := range cfg.Sniff.Channels {
		if ch > sniff.MaxChannel {
			return invalid("sniff.channels", ch)
		}
	}
	if _, err := log.ParseLevel(cfg.Logging.Level); err != nil {
		return invalid("logging.level", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return invalid("logging.format", cfg.Logging.Format)
	}
	return nil
}

// Apply configures the logrus standard logger.
func (l LoggingConfig) Apply() error {
	lvl, err := log.ParseLevel(l.Level)
	if err != nil {
		return errors.Wrapf(bluing.ErrInvalid, "log level %q", l.Level)
	}
	log.SetLevel(lvl)
	if l.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}
