// Package config loads the TOML files shared by the ragent binaries: address
// definition files and simulated router configs.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/ragent/internal/addressing"
	"github.com/danmuck/ragent/internal/routerconfig"
	"github.com/pelletier/go-toml/v2"
)

var ErrInvalidConfig = errors.New("config: invalid")

// AddressFile is the on-disk list of address definitions.
type AddressFile struct {
	Addresses []addressing.Definition `toml:"addresses"`
}

// SimConfig configures one simulated router.
type SimConfig struct {
	ID   string      `toml:"id"`
	Addr string      `toml:"addr"`
	Seed []SimEntity `toml:"seed"`
}

// SimEntity is an entity present on the simulated router at startup.
type SimEntity struct {
	Kind   string              `toml:"kind"`
	Record routerconfig.Record `toml:"record"`
}

// LoadAddressFile reads and validates address definitions.
func LoadAddressFile(path string) ([]addressing.Definition, error) {
	var file AddressFile
	if err := loadToml(path, &file); err != nil {
		return nil, err
	}
	if err := addressing.Validate(file.Addresses); err != nil {
		return nil, fmt.Errorf("%w (%s): %w", ErrInvalidConfig, path, err)
	}
	if file.Addresses == nil {
		file.Addresses = []addressing.Definition{}
	}
	return file.Addresses, nil
}

func LoadSimConfig(path string) (SimConfig, error) {
	var cfg SimConfig
	if err := loadToml(path, &cfg); err != nil {
		return SimConfig{}, err
	}
	if cfg.ID == "" {
		cfg.ID = "routersim"
	}
	if cfg.Addr == "" {
		cfg.Addr = ":5673"
	}
	if err := ValidateSimConfig(cfg); err != nil {
		return SimConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateSimConfig(cfg SimConfig) error {
	if strings.TrimSpace(cfg.ID) == "" {
		return fmt.Errorf("%w: routersim config missing id", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("%w: routersim config missing addr", ErrInvalidConfig)
	}
	for i, e := range cfg.Seed {
		if err := ValidateSimEntity(e); err != nil {
			return fmt.Errorf("%w: seed[%d]: %w", ErrInvalidConfig, i, err)
		}
	}
	return nil
}

func ValidateSimEntity(e SimEntity) error {
	if _, ok := routerconfig.KindByName(e.Kind); !ok {
		return fmt.Errorf("unknown kind %q", e.Kind)
	}
	if strings.TrimSpace(e.Record[routerconfig.AttrName]) == "" {
		return routerconfig.ErrMissingName
	}
	return nil
}

// TypeID returns the management type id of the entity's kind.
func (e SimEntity) TypeID() string {
	k, _ := routerconfig.KindByName(e.Kind)
	return k.TypeID
}
