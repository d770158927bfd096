package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kikiverse/kiki-deploy/internal/domain/config"
)

// forkEnvVars name the network a local fork was taken from. The first set one wins.
var forkEnvVars = []string{"KIKI_DEPLOY_FORK", "HARDHAT_DEPLOY_FORK"}

// Provider creates RuntimeConfig for Wire dependency injection
func Provider(v *viper.Viper) (*config.RuntimeConfig, error) {
	projectRoot := v.GetString("project_root")
	if projectRoot == "" {
		var err error
		projectRoot, err = FindProjectRoot()
		if err != nil {
			return nil, fmt.Errorf("failed to find project root: %w", err)
		}
	}

	loadDotEnv(projectRoot)

	kikiConfig, source, err := loadKikiConfig(projectRoot)
	if err != nil {
		return nil, err
	}

	cfg := &config.RuntimeConfig{
		ProjectRoot:    projectRoot,
		DataDir:        filepath.Join(projectRoot, ".kiki"),
		Debug:          v.GetBool("debug"),
		NonInteractive: v.GetBool("non_interactive"),
		JSON:           v.GetBool("json"),
		Timeout:        v.GetDuration("timeout"),
		Paths:          resolvePaths(projectRoot, kikiConfig.Paths),
		Manifest:       kikiConfig.Manifest,
		ConfigFile:     source,
		KikiConfig:     kikiConfig,
	}
	if plan := v.GetString("plan"); plan != "" {
		cfg.Paths.Plan = resolvePaths(projectRoot, config.PathsConfig{Plan: plan}).Plan
	}
	if cfg.Manifest.Backend == config.ManifestBackendSQLite && cfg.Manifest.DSN == "" {
		cfg.Manifest.DSN = filepath.Join(cfg.DataDir, "manifests.db")
	}

	network, err := ResolveNetwork(kikiConfig, v.GetString("network"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve network: %w", err)
	}
	cfg.Network = network

	if fork := forkNetwork(v); fork != "" {
		forked, ok := kikiConfig.Networks[fork]
		if !ok {
			return nil, fmt.Errorf("fork network '%s' not found, configured: %v", fork, NetworkNames(kikiConfig))
		}
		cfg.Fork = fork
		cfg.ForkChainID = forked.ChainID
	}

	accounts, err := ResolveAccounts(kikiConfig.Accounts, network)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve accounts: %w", err)
	}
	cfg.Accounts = accounts

	return cfg, nil
}

func forkNetwork(v *viper.Viper) string {
	if fork := v.GetString("fork"); fork != "" {
		return fork
	}
	for _, name := range forkEnvVars {
		if fork := os.Getenv(name); fork != "" {
			return fork
		}
	}
	return ""
}

// FindProjectRoot walks up from current directory to find kiki.toml or foundry.toml
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		for _, name := range []string{kikiFileName, foundryFileName} {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a kiki project (kiki.toml or foundry.toml not found)")
		}
		dir = parent
	}
}

// SetupViper creates and configures a viper instance
func SetupViper(projectRoot string, cmd *cobra.Command) *viper.Viper {
	v := viper.New()

	// Set up config file
	v.SetConfigName("config.local")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(projectRoot, ".kiki"))

	// Set up environment variables
	v.SetEnvPrefix("KIKI")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	// Set defaults
	v.SetDefault("network", DefaultNetwork)
	v.SetDefault("timeout", "5m")
	v.SetDefault("debug", false)
	v.SetDefault("non_interactive", false)
	v.SetDefault("project_root", projectRoot)

	// Try to read config file (ignore error if not found)
	_ = v.ReadInConfig()

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if err := v.BindPFlag(key, f); err != nil {
			panic(err)
		}
	})

	return v
}
