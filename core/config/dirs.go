package config

import (
	"os"
	"path/filepath"
)

const appName = "saturn"

// Dirs holds the user-level directories of the application.
type Dirs struct {
	Config string // configuration files
	Data   string // databases
}

// ResolveDirs returns the XDG directories, falling back to the usual
// locations under $HOME.
func ResolveDirs() *Dirs {
	home := os.Getenv("HOME")
	return &Dirs{
		Config: resolveDir("XDG_CONFIG_HOME", filepath.Join(home, ".config")),
		Data:   resolveDir("XDG_DATA_HOME", filepath.Join(home, ".local", "share")),
	}
}

func resolveDir(envVar, fallback string) string {
	if dir := os.Getenv(envVar); dir != "" {
		return filepath.Join(dir, appName)
	}
	return filepath.Join(fallback, appName)
}

// ConfigFile returns the path of the user configuration file.
func (d *Dirs) ConfigFile() string {
	return filepath.Join(d.Config, "config.yaml")
}

// DataFile returns a path inside the data directory.
func (d *Dirs) DataFile(name string) string {
	return filepath.Join(d.Data, name)
}

// ProjectConfigFile returns the project configuration file under root.
func ProjectConfigFile(root string) string {
	return filepath.Join(root, "."+appName, "config.yaml")
}
