// Package paths locates the cmdrelay config and data directories.
//
// Both directories resolve through an explicit value, then an environment
// override, then the platform default. On Linux the defaults follow XDG; on
// other platforms config and data share os.UserConfigDir.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// ConfigFileName is the configuration file inside the config directory.
const ConfigFileName = "config.yaml"

const (
	appDirName   = "cmdrelay"
	envConfigDir = "CMDRELAY_CONFIG_DIR"
	envDataDir   = "CMDRELAY_DATA_DIR"
)

// platformDir is swapped in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// ResolveConfigDir returns flag, else $CMDRELAY_CONFIG_DIR, else the platform
// config directory. Explicit values are made absolute.
func ResolveConfigDir(flag string) (string, error) {
	if dir, ok, err := firstAbs(flag, os.Getenv(envConfigDir)); ok || err != nil {
		return dir, err
	}
	return appDir("XDG_CONFIG_HOME", ".config")
}

// ResolveDataDir returns flag, else data_dir from config.yaml, else
// $CMDRELAY_DATA_DIR, else the platform data directory.
func ResolveDataDir(flag, configValue string) (string, error) {
	if dir, ok, err := firstAbs(flag, configValue, os.Getenv(envDataDir)); ok || err != nil {
		return dir, err
	}
	return appDir("XDG_DATA_HOME", ".local", "share")
}

func firstAbs(candidates ...string) (string, bool, error) {
	for _, c := range candidates {
		if c != "" {
			dir, err := filepath.Abs(c)
			return dir, true, err
		}
	}
	return "", false, nil
}

// appDir returns the cmdrelay directory under $xdgVar, or under the home
// fallback on Linux, or under os.UserConfigDir elsewhere.
func appDir(xdgVar string, homeFallback ...string) (string, error) {
	if runtime.GOOS != "linux" {
		root, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(root, appDirName), nil
	}
	if xdg := os.Getenv(xdgVar); xdg != "" {
		return filepath.Join(xdg, appDirName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append(append([]string{home}, homeFallback...), appDirName)...), nil
}
