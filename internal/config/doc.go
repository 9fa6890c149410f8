// Package config defines the bank-deploy configuration and loads it with
// viper. Precedence, lowest to highest: built-in defaults, config file
// (YAML, or JSON with comments), BANKDEPLOY_* environment variables.
package config
