package utils

import (
	"os"
	"path"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// GetTimestampToken returns the correlation token shared by the report and
// script artifacts of one session.
func GetTimestampToken() string {
	return time.Now().Format("20060102_150405")
}

func GetHostname() string {
	if hostname := os.Getenv("VULNIX_HOSTNAME"); hostname != "" {
		return hostname
	}
	hostname, err := os.Hostname()
	if err != nil {
		return "(unknown)"
	}
	return hostname
}

// DefaultOutputDir returns the artifact directory: the user's Desktop when it
// exists, otherwise the home directory.
func DefaultOutputDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	desktop := path.Join(home, "Desktop")
	if info, err := os.Stat(desktop); err == nil && info.IsDir() {
		return desktop
	}
	return home
}

func Contains(s []string, str string) bool {
	for _, v := range s {
		if v == str {
			return true
		}
	}
	return false
}

// LoadConfigFile fills empty Config fields from a yaml file. Flags set on the
// command line keep precedence.
func LoadConfigFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return err
	}
	mergeConfig(cfg, fileCfg)
	log.Debugf("loaded config file %s", path)
	return nil
}

func mergeConfig(cfg *Config, from Config) {
	if cfg.Output == "" {
		cfg.Output = from.Output
	}
	if cfg.ScanMode == "" {
		cfg.ScanMode = from.ScanMode
	}
	if cfg.ConfirmPolicy == "" {
		cfg.ConfirmPolicy = from.ConfirmPolicy
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = from.OutputDir
	}
	if cfg.TrivyBinPath == "" {
		cfg.TrivyBinPath = from.TrivyBinPath
	}
	if cfg.ScanTimeout == "" {
		cfg.ScanTimeout = from.ScanTimeout
	}
	if cfg.OracleModel == "" {
		cfg.OracleModel = from.OracleModel
	}
	if cfg.OracleAPIKey == "" {
		cfg.OracleAPIKey = from.OracleAPIKey
	}
	if cfg.OracleBaseURL == "" {
		cfg.OracleBaseURL = from.OracleBaseURL
	}
	if cfg.StorePath == "" {
		cfg.StorePath = from.StorePath
	}
	if cfg.FailOnCount == 0 {
		cfg.FailOnCount = from.FailOnCount
	}
}
