package bootstrap

import (
	"github.com/skillsenselab/faultkit/config"
)

// Config is the interface constraint for application configuration types.
// Any struct that embeds config.BaseConfig (value embedding) automatically
// satisfies this interface via promoted methods, except GetBaseConfig,
// which embedding structs provide themselves:
//
//	type MyConfig struct {
//	    config.BaseConfig `yaml:",inline" mapstructure:",squash"`
//	    Guards map[string]config.GuardConfig `yaml:"guards" mapstructure:"guards"`
//	}
//
//	func (c *MyConfig) GetBaseConfig() *config.BaseConfig { return &c.BaseConfig }
type Config interface {
	GetBaseConfig() *config.BaseConfig
	ApplyDefaults()
	Validate() error
}
