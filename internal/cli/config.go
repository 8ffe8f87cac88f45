package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"NewsPipeline/internal/config"
)

const maskedSecret = "********"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the merged configuration with secrets masked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(maskSecrets(cfg))
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and exit non-zero on problems",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "configuration ok")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "newspipeline %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(configCmd, versionCmd)
	configCmd.AddCommand(configShowCmd, configValidateCmd)
}

func maskSecrets(cfg config.Config) config.Config {
	mask := func(s *string) {
		if *s != "" {
			*s = maskedSecret
		}
	}
	mask(&cfg.Redis.Password)
	mask(&cfg.LLM.APIKey)
	mask(&cfg.Channels.CMS.Password)
	mask(&cfg.Channels.Telegram.BotToken)
	if cfg.Database.Driver == "postgres" {
		mask(&cfg.Database.DSN)
	}
	return cfg
}
