// Package config provides configuration types and loading for the worker bridge.
package config
