// Package config loads the YAML description of a manifest build: the
// placement parameters and, per falcon slot, where its firmware lives.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/c2h5oh/datasize"
	"gopkg.in/yaml.v3"

	"github.com/joshuapare/wprkit/internal/format"
)

// Kind selects how a slot's firmware files become an image.
type Kind string

const (
	// KindPMU is a pmu_ucode_desc described image: desc, image and sig files.
	KindPMU Kind = "pmu"
	// KindFECS is the FECS part of a ctxsw surface.
	KindFECS Kind = "fecs"
	// KindGPCCS is the GPCCS part of a ctxsw surface.
	KindGPCCS Kind = "gpccs"
	// KindNoLoader is a header described image loaded at IMEM zero.
	KindNoLoader Kind = "noloader"
)

// Segment is one ctxsw segment of a surface.
type Segment struct {
	Offset uint32 `yaml:"offset"`
	Size   uint32 `yaml:"size"`
}

// Segments are the ctxsw segments of a FECS or GPCCS slot.
type Segments struct {
	Boot           Segment `yaml:"boot"`
	Code           Segment `yaml:"code"`
	Data           Segment `yaml:"data"`
	BootIMEMOffset uint32  `yaml:"boot_imem_offset"`
	BootEntry      uint32  `yaml:"boot_entry"`
}

// Slot configures one falcon slot.
type Slot struct {
	// ID is the slot index, below format.FalconIDEnd.
	ID       uint32 `yaml:"id"`
	Kind     Kind   `yaml:"kind"`
	Instance uint32 `yaml:"instance,omitempty"`
	Lazy     bool   `yaml:"lazy,omitempty"`
	PrivLoad bool   `yaml:"priv_load,omitempty"`
	DMAIdx   uint32 `yaml:"dma_idx,omitempty"`

	// Image is the firmware image, or the ctxsw surface for FECS and GPCCS.
	Image string `yaml:"image"`
	// Desc is the pmu_ucode_desc file of a PMU slot.
	Desc string `yaml:"desc,omitempty"`
	// Sig is the signature file. Unsigned no-loader slots are skipped.
	Sig string `yaml:"sig,omitempty"`
	// Header is the no-loader header file.
	Header string `yaml:"header,omitempty"`

	Segments *Segments `yaml:"segments,omitempty"`
}

// Config describes one manifest build.
type Config struct {
	// WPRBase is the physical base of the write-protected region.
	WPRBase        uint64 `yaml:"wpr_base"`
	Primary        uint32 `yaml:"primary"`
	BootstrapOwner uint32 `yaml:"bootstrap_owner"`
	// ArgsOffset is the argv offset handed to the primary falcon.
	ArgsOffset uint32 `yaml:"args_offset"`
	// BlobLimit caps the manifest size.
	BlobLimit datasize.ByteSize `yaml:"blob_limit"`
	Slots     []Slot            `yaml:"slots"`
}

const (
	// DefaultConfigFilename is used when Load gets an empty path.
	DefaultConfigFilename = "wprkit.yaml"

	// DefaultBlobLimit caps manifests when the file sets no limit.
	DefaultBlobLimit = 64 * datasize.MB

	// DefaultFilePermissions is the mode of files written by Save.
	DefaultFilePermissions = 0o600
)

var (
	errConfigIsNotSet = errors.New("configuration is not set")
	errBlobLimit      = errors.New("blob limit exceeds 32-bit manifest offsets")
)

// Load reads the configuration at path, validates it and resolves relative
// firmware paths against the directory of path.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(contents)
	if err != nil {
		return nil, err
	}
	cfg.Resolve(filepath.Dir(path))
	return cfg, nil
}

// Parse decodes and validates a YAML configuration. Unknown keys are errors.
func Parse(contents []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(contents))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}
	if path == "" {
		path = DefaultConfigFilename
	}
	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks cfg and fills defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}
	if cfg.WPRBase%format.WPRHeaderAlignment != 0 {
		return fmt.Errorf("wpr_base %#x is not %d-aligned", cfg.WPRBase, format.WPRHeaderAlignment)
	}
	if cfg.Primary >= format.FalconIDEnd {
		return fmt.Errorf("primary falcon %d out of range", cfg.Primary)
	}
	if cfg.BootstrapOwner >= format.FalconIDEnd {
		return fmt.Errorf("bootstrap owner %d out of range", cfg.BootstrapOwner)
	}

	if cfg.BlobLimit == 0 {
		cfg.BlobLimit = DefaultBlobLimit
	}
	if cfg.BlobLimit.Bytes() > math.MaxUint32 {
		return errBlobLimit
	}

	seen := make(map[uint32]bool, len(cfg.Slots))
	for i := range cfg.Slots {
		s := &cfg.Slots[i]
		if s.ID >= format.FalconIDEnd {
			return fmt.Errorf("slot %d: id out of range", s.ID)
		}
		if seen[s.ID] {
			return fmt.Errorf("slot %d: configured twice", s.ID)
		}
		seen[s.ID] = true
		if err := s.validate(); err != nil {
			return fmt.Errorf("slot %d: %w", s.ID, err)
		}
	}
	return nil
}

func (s *Slot) validate() error {
	if s.Image == "" {
		return errors.New("image path required")
	}
	switch s.Kind {
	case KindPMU:
		if s.Desc == "" || s.Sig == "" {
			return errors.New("pmu needs desc and sig paths")
		}
	case KindFECS, KindGPCCS:
		if s.Sig == "" {
			return fmt.Errorf("%s needs a sig path", s.Kind)
		}
		if s.Segments == nil {
			return fmt.Errorf("%s needs segments", s.Kind)
		}
	case KindNoLoader:
		if s.Header == "" {
			return errors.New("noloader needs a header path")
		}
	default:
		return fmt.Errorf("unknown kind %q", s.Kind)
	}
	return nil
}

// Resolve makes every relative firmware path relative to dir.
func (c *Config) Resolve(dir string) {
	abs := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
	for i := range c.Slots {
		s := &c.Slots[i]
		abs(&s.Image)
		abs(&s.Desc)
		abs(&s.Sig)
		abs(&s.Header)
	}
}
