package commands

import (
	"fmt"

	"podrepo-agent/internal/version"

	"github.com/spf13/cobra"
)

// configCmd represents the config command and subcommands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  "Manage configuration settings for the podrepo agent.",
}

// configShowCmd shows current configuration
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showConfig()
	},
}

// configSetCmd changes one configuration key and saves the file
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value and write it to the config file.

Example:
  podrepo-agent config set project_dir ~/src/MyApp
  podrepo-agent config set prune_on_discovery true`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setConfig(args[0], args[1])
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func showConfig() error {
	cfg := cfgManager.GetConfig()

	fmt.Printf("Configuration:\n")
	fmt.Printf("  Agent Version: %s\n", version.Version)
	fmt.Printf("  Config File: %s\n", cfgManager.GetConfigFile())
	fmt.Printf("  Repos Directory: %s\n", cfg.ReposDir)
	fmt.Printf("  Project Directory: %s\n", cfg.ProjectDir)
	fmt.Printf("  pod Binary: %s\n", cfg.PodBinary)
	fmt.Printf("  Listen Address: %s\n", cfg.ListenAddr)
	fmt.Printf("  Log File: %s\n", cfg.LogFile)
	fmt.Printf("  Log Level: %s\n", cfg.LogLevel)

	fmt.Printf("\nTimeouts:\n")
	fmt.Printf("  CDN: %ds\n", cfg.CDNTimeout)
	fmt.Printf("  Update: %ds\n", cfg.UpdateTimeout)
	fmt.Printf("  Discovery: %ds\n", cfg.DiscoveryTimeout)

	fmt.Printf("\nBehaviour:\n")
	fmt.Printf("  Prune On Discovery: %t\n", cfg.PruneOnDiscovery)
	if cfg.SkipSSLVerify {
		fmt.Print("  TLS Verification: Disabled ⚠️\n")
	} else {
		fmt.Print("  TLS Verification: Enabled ✅\n")
	}
	return nil
}

func setConfig(key, value string) error {
	if err := cfgManager.Set(key, value); err != nil {
		return err
	}
	if err := cfgManager.SaveConfig(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	logger.WithField("key", key).WithField("path", cfgManager.GetConfigFile()).Info("Config saved")
	fmt.Printf("✅ %s updated\n", key)
	return nil
}
