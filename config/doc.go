// Package config loads service configuration from YAML files and the
// environment using viper and godotenv. It provides the base service
// section plus typed sections for resilience policies (retry, circuit
// breaker, bulkhead), guards, and the stats server, with struct-tag
// validation via go-playground/validator.
package config
