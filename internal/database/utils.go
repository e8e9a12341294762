package database

import (
	"path/filepath"
)

// dataSourceName resolves the sqlite file location relative to the config
// directory.
func dataSourceName(configPath string, name string) string {
	if configPath != "" {
		return filepath.Join(configPath, name)
	}
	return name
}

// likePattern wraps user input in wildcards for a LIKE clause.
func likePattern(s string) string {
	return "%" + s + "%"
}
