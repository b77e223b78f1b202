package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Descriptor seeds a new record at start time. It is read once and never
// consulted again; restarts reuse what the record captured.
type Descriptor struct {
	Name    string   `mapstructure:"name"`
	Program string   `mapstructure:"program"`
	Args    []string `mapstructure:"args"`
}

// ParseError reports an unreadable or invalid configuration document.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// LoadDescriptor parses a {name, program, args} document. The format follows
// the file extension (json, yaml, yml, toml) and defaults to JSON.
func LoadDescriptor(path string) (Descriptor, error) {
	clean := filepath.Clean(path)
	v := viper.New()
	v.SetConfigFile(clean)
	v.SetConfigType(descriptorType(clean))
	if err := v.ReadInConfig(); err != nil {
		return Descriptor{}, &ParseError{Path: clean, Err: errors.Wrap(err, "read descriptor")}
	}
	var d Descriptor
	if err := v.Unmarshal(&d); err != nil {
		return Descriptor{}, &ParseError{Path: clean, Err: errors.Wrap(err, "decode descriptor")}
	}
	if strings.TrimSpace(d.Program) == "" {
		return Descriptor{}, &ParseError{Path: clean, Err: errors.New("descriptor requires program")}
	}
	return d, nil
}

func descriptorType(path string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "yaml", "yml":
		return "yaml"
	case "toml":
		return "toml"
	default:
		return "json"
	}
}
