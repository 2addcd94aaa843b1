package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// AppName names the per-user configuration and data directories
const AppName = "assistant-session"

// DataPaths holds the per-user locations of configuration and session storage
type DataPaths struct {
	ConfigDir string // config.yaml / config.toml / .env
	DataDir   string // session database
	DBPath    string // sqlite key-value store
}

// DetectDataPaths resolves the data locations for the current operating system
func DetectDataPaths() (DataPaths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return DataPaths{}, fmt.Errorf("failed to get home directory: %w", err)
	}

	var configDir, dataDir string
	switch runtime.GOOS {
	case "darwin":
		configDir = filepath.Join(home, "Library/Application Support", AppName)
		dataDir = configDir
	case "linux", "freebsd", "openbsd", "netbsd":
		configDir = filepath.Join(envOr("XDG_CONFIG_HOME", filepath.Join(home, ".config")), AppName)
		dataDir = filepath.Join(envOr("XDG_DATA_HOME", filepath.Join(home, ".local/share")), AppName)
	case "windows":
		configDir = filepath.Join(envOr("APPDATA", filepath.Join(home, "AppData", "Roaming")), AppName)
		dataDir = configDir
	default:
		return DataPaths{}, fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}

	return DataPaths{
		ConfigDir: configDir,
		DataDir:   dataDir,
		DBPath:    filepath.Join(dataDir, "sessions.db"),
	}, nil
}

// WithDatabase returns a copy of sp storing sessions at path
func (sp DataPaths) WithDatabase(path string) DataPaths {
	if path != "" {
		sp.DBPath = path
		sp.DataDir = filepath.Dir(path)
	}
	return sp
}

// ConfigFiles lists the config file candidates in lookup order
func (sp DataPaths) ConfigFiles() []string {
	return []string{
		filepath.Join(sp.ConfigDir, "config.yaml"),
		filepath.Join(sp.ConfigDir, "config.yml"),
		filepath.Join(sp.ConfigDir, "config.toml"),
	}
}

// EnvFile returns the path of the per-user .env file
func (sp DataPaths) EnvFile() string {
	return filepath.Join(sp.ConfigDir, ".env")
}

// DatabaseExists checks if the session database exists
func (sp DataPaths) DatabaseExists() bool {
	_, err := os.Stat(sp.DBPath)
	return err == nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
