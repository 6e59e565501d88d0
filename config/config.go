// Package config reads the pdfstamp configuration file.
package config

import (
	"compress/zlib"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/asaskevich/govalidator"
	"github.com/digitorus/pdfstamp/common"
	"github.com/digitorus/pdfstamp/images"
	"github.com/digitorus/pdfstamp/render"
	"github.com/digitorus/pdfstamp/stamp"
)

func init() {
	govalidator.SetFieldsRequiredByDefault(true)
}

var (
	DefaultLocation string = "./pdfstamp.toml" // Default location of the config file
	Settings        Config                     // Set by Read
)

// Config is the root of the config
type Config struct {
	Stamp    Stamp    `toml:"stamp" valid:"required"`
	Render   Render   `toml:"render" valid:"required"`
	Images   Images   `toml:"images" valid:"required"`
	Services Services `toml:"services" valid:"required"`
	Log      Log      `toml:"log" valid:"required"`
}

// Stamp configures compositing.
type Stamp struct {
	WidthPt       float64 `toml:"width_pt" valid:"required"`
	CompressLevel int     `toml:"compress_level" valid:"optional"`
	UpdateInfo    bool    `toml:"update_info" valid:"-"`
	Producer      string  `toml:"producer" valid:"printableascii,optional"`
}

// Render configures page rasterization.
type Render struct {
	DefaultWidthPx int `toml:"default_width_px" valid:"range(1|20000)"`
	CacheEntries   int `toml:"cache_entries" valid:"range(0|4096),optional"`
}

// Images bounds accepted signer images.
type Images struct {
	MaxBytes  int64 `toml:"max_bytes" valid:"required"`
	MaxPixels int64 `toml:"max_pixels" valid:"required"`
}

// Services locates the document and submission services.
type Services struct {
	DocumentURL       string        `toml:"document_url" valid:"url,optional"`
	SubmissionURL     string        `toml:"submission_url" valid:"url,optional"`
	AuthToken         string        `toml:"auth_token" valid:"optional"`
	Timeout           time.Duration `toml:"timeout" valid:"-"`
	RequestsPerSecond float64       `toml:"requests_per_second" valid:"optional"`
	Burst             int           `toml:"burst" valid:"range(0|1000),optional"`
}

// Log configures the logger.
type Log struct {
	Level  string `toml:"level" valid:"in(debug|info|warn|error)"`
	Format string `toml:"format" valid:"in(text|json)"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	limits := images.DefaultLimits()
	return Config{
		Stamp: Stamp{
			WidthPt:       common.StampWidth,
			CompressLevel: zlib.DefaultCompression,
			UpdateInfo:    true,
			Producer:      "pdfstamp",
		},
		Render: Render{
			DefaultWidthPx: 800,
			CacheEntries:   render.DefaultCacheEntries,
		},
		Images: Images{
			MaxBytes:  limits.MaxBytes,
			MaxPixels: limits.MaxPixels,
		},
		Services: Services{
			Timeout:           30 * time.Second,
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// ValidateFields validates all the fields of the config
func (c Config) ValidateFields() error {
	if _, err := govalidator.ValidateStruct(c); err != nil {
		return err
	}
	var errs []error
	if c.Stamp.WidthPt < 0 {
		errs = append(errs, fmt.Errorf("stamp.width_pt must be positive, got %v", c.Stamp.WidthPt))
	}
	if c.Stamp.CompressLevel < zlib.DefaultCompression || c.Stamp.CompressLevel > zlib.BestCompression {
		errs = append(errs, fmt.Errorf("stamp.compress_level must be in [-1,9], got %d", c.Stamp.CompressLevel))
	}
	if c.Images.MaxBytes < 0 || c.Images.MaxPixels < 0 {
		errs = append(errs, errors.New("images limits must not be negative"))
	}
	if c.Services.Timeout < 0 {
		errs = append(errs, fmt.Errorf("services.timeout must not be negative, got %v", c.Services.Timeout))
	}
	if c.Services.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("services.requests_per_second must not be negative"))
	}
	return errors.Join(errs...)
}

// Decode parses TOML on top of the defaults and validates the result.
func Decode(data string) (Config, error) {
	c := Default()
	md, err := toml.Decode(data, &c)
	if err != nil {
		return Config{}, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("unknown config keys: %v", undecoded)
	}
	if err := c.ValidateFields(); err != nil {
		return Config{}, fmt.Errorf("config is not valid: %w", err)
	}
	return c, nil
}

// Load reads and validates the config file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config file is missing: %w", err)
	}
	c, err := Decode(string(data))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Read loads the config file into Settings.
func Read(configfile string) error {
	c, err := Load(configfile)
	if err != nil {
		return err
	}
	Settings = c
	return nil
}

// StampOptions returns the compositing options.
func (c Config) StampOptions() stamp.Options {
	opts := stamp.DefaultOptions()
	opts.Width = c.Stamp.WidthPt
	opts.CompressLevel = c.Stamp.CompressLevel
	opts.UpdateInfo = c.Stamp.UpdateInfo
	opts.Producer = c.Stamp.Producer
	return opts
}

// ImageLimits returns the signer image limits.
func (c Config) ImageLimits() images.Limits {
	return images.Limits{MaxBytes: c.Images.MaxBytes, MaxPixels: c.Images.MaxPixels}
}
