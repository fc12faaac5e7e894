package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// AppName names the XDG subdirectories and the environment prefix.
const AppName = "chatrelay"

// GetDefaultDatabasePath returns the conversation database location under
// XDG_STATE_HOME.
func GetDefaultDatabasePath() string {
	return filepath.Join(xdg.StateHome, AppName, AppName+".db")
}

// GetDefaultConfigDir returns the directory searched for config.{yaml,json,toml}.
func GetDefaultConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}
