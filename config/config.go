package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	db "cswitch/debug"
)

const (
	CSWCONFIG = "CSWCONFIG"
	NO_CPU    = -1
)

var ErrConfig = errors.New("bad config")

// Defaults. The iteration count must be large enough to amortize timer
// resolution and syscall overhead.
var defaults = `
bench:
  iterations: 50000
  trials: 1
  include_spawn: false
  cpu: -1
`

type Config struct {
	Bench struct {
		// Ping-pong round trips per phase.
		ITERATIONS int `yaml:"iterations"`
		// Independent repetitions of each phase.
		TRIALS int `yaml:"trials"`
		// Start the timer before the secondary worker is created.
		INCLUDE_SPAWN bool `yaml:"include_spawn"`
		// CPU both sides pin themselves to; NO_CPU disables pinning.
		CPU int `yaml:"cpu"`
	} `yaml:"bench"`
}

func (c *Config) String() string {
	return fmt.Sprintf("{iterations %d trials %d include_spawn %v cpu %d}",
		c.Bench.ITERATIONS, c.Bench.TRIALS, c.Bench.INCLUDE_SPAWN, c.Bench.CPU)
}

// Default returns the embedded defaults.
func Default() *Config {
	c := &Config{}
	if err := decode(c, strings.NewReader(defaults)); err != nil {
		db.DFatalf("Yaml decode defaults err %v", err)
	}
	return c
}

// Load returns the defaults, overridden by the file named in CSWCONFIG
// if it is set.
func Load() (*Config, error) {
	c := Default()
	if pn := os.Getenv(CSWCONFIG); pn != "" {
		if err := c.Merge(pn); err != nil {
			return nil, err
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	db.DPrintf(db.CONFIG, "Config %v", c)
	return c, nil
}

// Merge overrides the fields present in the YAML file pn.
func (c *Config) Merge(pn string) error {
	file, err := os.Open(pn)
	if err != nil {
		return fmt.Errorf("%w: open %v: %v", ErrConfig, pn, err)
	}
	defer file.Close()
	if err := decode(c, file); err != nil {
		return fmt.Errorf("%w: decode %v: %v", ErrConfig, pn, err)
	}
	return nil
}

func decode(c *Config, rdr io.Reader) error {
	d := yaml.NewDecoder(rdr)
	d.KnownFields(true)
	if err := d.Decode(c); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Bench.ITERATIONS < 1 {
		return fmt.Errorf("%w: iterations %d < 1", ErrConfig, c.Bench.ITERATIONS)
	}
	if c.Bench.TRIALS < 1 {
		return fmt.Errorf("%w: trials %d < 1", ErrConfig, c.Bench.TRIALS)
	}
	if c.Bench.CPU < NO_CPU {
		return fmt.Errorf("%w: cpu %d", ErrConfig, c.Bench.CPU)
	}
	return nil
}

func (c *Config) Pinned() bool {
	return c.Bench.CPU != NO_CPU
}
