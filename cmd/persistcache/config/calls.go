package config

import (
	"slices"
	"strings"
)

// Sub returns subsection of the Config by name.
//
// Missing subsection is an empty tree.
func (x *Config) Sub(name string) *Config {
	return &Config{
		v:    x.v,
		path: append(slices.Clone(x.path), name),
	}
}

// Value returns configuration value by name.
//
// Result can be casted to a particular type
// via corresponding function (e.g. StringSlice).
// Note: casting via Go `.()` operator is not
// recommended.
func (x *Config) Value(name string) any {
	return x.v.Get(strings.Join(append(slices.Clone(x.path), name), separator))
}

// FilePath returns path of the configuration file the values were read
// from. Empty if there is no file.
func (x *Config) FilePath() string {
	return x.v.ConfigFileUsed()
}
