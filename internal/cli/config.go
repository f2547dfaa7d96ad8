package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/cmdrelay/internal/logging"
	"github.com/mesh-intelligence/cmdrelay/internal/paths"
	"github.com/mesh-intelligence/cmdrelay/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	envPrefix      = "CMDRELAY"

	cfgKeyDataDir        = "data_dir"
	cfgKeyConnectTimeout = "ssh.connect_timeout"
	cfgKeyExecTimeout    = "ssh.exec_timeout"
	cfgKeyKnownHosts     = "ssh.known_hosts"
	cfgKeyLogLevel       = "log.level"

	defaultLogLevel = "warn"
)

// defaultConfigYAML is the content written to config.yaml on first run.
const defaultConfigYAML = `# cmdrelay configuration

# Directory holding commands.db (overridable by --data-dir)
# data_dir:

ssh:
  connect_timeout: 30s
  exec_timeout: 60s
  # known_hosts file used to verify targets; empty accepts any host key
  known_hosts: ""

log:
  # trace, debug, info, warn, error, off
  level: warn
`

// settings is the configuration resolved for one invocation.
type settings struct {
	configDir string
	config    types.Config
	logLevel  string
}

// load resolves directories, reads config.yaml, and builds the logger. It
// runs before every subcommand.
func (a *app) load(cmd *cobra.Command, args []string) error {
	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return sysError(fmt.Errorf("resolve config dir: %w", err))
	}

	v, err := loadConfig(configDir)
	if err != nil {
		return sysError(err)
	}

	s, err := resolveSettings(v, configDir, a.flags.dataDir)
	if err != nil {
		return userError(err)
	}
	a.settings = s

	logCfg := logging.DefaultConfig(logging.ProfileRuntime)
	logging.ApplyLevel(&logCfg, s.logLevel)
	logging.ApplyEnvOverrides(&logCfg)
	a.log = logging.New(cmd.ErrOrStderr(), logCfg)
	return nil
}

// loadConfig reads config.yaml from configDir using Viper. It creates the
// config directory and a default config.yaml on first run. The ssh.* and
// log.* keys may be overridden from CMDRELAY_* environment variables.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyConnectTimeout, types.DefaultConnectTimeout)
	v.SetDefault(cfgKeyExecTimeout, types.DefaultExecTimeout)
	v.SetDefault(cfgKeyKnownHosts, "")
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	// data_dir stays out of the env binding; CMDRELAY_DATA_DIR is resolved
	// by paths with lower precedence than config.yaml.
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range []string{cfgKeyConnectTimeout, cfgKeyExecTimeout, cfgKeyKnownHosts, cfgKeyLogLevel} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// ensureDefaultConfigFile creates a default config.yaml if the file does not
// exist in the config directory.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, paths.ConfigFileName)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

func resolveSettings(v *viper.Viper, configDir, dataDirFlag string) (settings, error) {
	dataDir, err := paths.ResolveDataDir(dataDirFlag, v.GetString(cfgKeyDataDir))
	if err != nil {
		return settings{}, fmt.Errorf("resolve data dir: %w", err)
	}

	cfg := types.Config{
		DataDir:        dataDir,
		ConnectTimeout: v.GetDuration(cfgKeyConnectTimeout),
		ExecTimeout:    v.GetDuration(cfgKeyExecTimeout),
		KnownHostsPath: v.GetString(cfgKeyKnownHosts),
	}
	if err := cfg.Validate(); err != nil {
		return settings{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return settings{
		configDir: configDir,
		config:    cfg,
		logLevel:  v.GetString(cfgKeyLogLevel),
	}, nil
}
