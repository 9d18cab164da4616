package config

import (
	"fmt"

	"github.com/skillsenselab/faultkit/logger"
)

// BaseConfig contains the essential fields every service needs.
// Projects extend this by embedding it in their own config structs:
//
//	type MyConfig struct {
//	    config.BaseConfig `yaml:",inline" mapstructure:",squash"`
//	    Guards map[string]config.GuardConfig `yaml:"guards" mapstructure:"guards"`
//	}
type BaseConfig struct {
	Name        string        `yaml:"name" mapstructure:"name" validate:"required"`
	Environment string        `yaml:"environment" mapstructure:"environment" validate:"omitempty,oneof=development staging production"`
	Version     string        `yaml:"version" mapstructure:"version"`
	Debug       bool          `yaml:"debug" mapstructure:"debug"`
	Logging     logger.Config `yaml:"logging" mapstructure:"logging"`
}

// ApplyDefaults applies default values to the base configuration.
// Override this in embedding structs and call BaseConfig.ApplyDefaults first.
func (c *BaseConfig) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
	if c.Logging.ServiceName == "" && c.Name != "" {
		c.Logging.ServiceName = c.Name
	}
	c.Logging.ApplyDefaults()
}

// Validate validates the base configuration fields.
// Override this in embedding structs and call BaseConfig.Validate first.
func (c *BaseConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config.name is required")
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	return nil
}
