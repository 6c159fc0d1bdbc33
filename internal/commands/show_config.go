// internal/commands/show_config.go
package llmeval

import (
	"github.com/spf13/cobra"

	"github.com/mwiater/llmeval/internal/appconfig"
)

// showConfigCmd implements the 'config' command, which displays the current configuration settings.
var showConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show config settings",
	Long:  `Show config settings ensuring that the YAML config is loaded properly and overridden by flags accordingly.`,
	Run: func(cmd *cobra.Command, args []string) {
		if raw, _ := cmd.Flags().GetBool("raw"); raw {
			appconfig.ShowRaw(cmd.OutOrStdout(), *GetConfig())
			return
		}
		appconfig.ShowConfig(cmd.OutOrStdout(), *GetConfig())
	},
}

func init() {
	rootCmd.AddCommand(showConfigCmd)
	showConfigCmd.Flags().Bool("raw", false, "dump the decoded configuration structure")
}
