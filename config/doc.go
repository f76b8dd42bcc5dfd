// Package config loads fuelcast settings from a YAML file, a .env file and
// FUELCAST_* environment variables, in increasing order of precedence.
package config
