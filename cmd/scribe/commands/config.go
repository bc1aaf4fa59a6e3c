package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/attunehealth/scribe/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Manage scribe CLI configuration.

Configuration is stored in ~/.scribe/config.yaml.
Multiple contexts can be defined for different practices or environments.`,
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add a new context",
	Long: `Add a new context for a practice.

Examples:
  scribe config add-context clinic --tenant tenant-a --data-dir ~/.scribe/data
  scribe config add-context clinic --tenant tenant-a --openai-api-key sk-xxxxx --model gpt-4o-mini`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		tenant, _ := cmd.Flags().GetString("tenant")
		channelBaseURL, _ := cmd.Flags().GetString("channel-base-url")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		archiveDir, _ := cmd.Flags().GetString("archive-dir")
		apiKey, _ := cmd.Flags().GetString("openai-api-key")
		baseURL, _ := cmd.Flags().GetString("openai-base-url")
		model, _ := cmd.Flags().GetString("model")

		if tenant == "" {
			return fmt.Errorf("tenant is required")
		}

		ctx := &cli.Context{
			Name:           name,
			TenantID:       tenant,
			ChannelBaseURL: channelBaseURL,
			DataDir:        dataDir,
			ArchiveDir:     archiveDir,
			OpenAIAPIKey:   apiKey,
			OpenAIBaseURL:  baseURL,
			Model:          model,
		}
		if err := globalConfig.AddContext(name, ctx); err != nil {
			return err
		}
		cli.PrintSuccess("Context '%s' added successfully", name)
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := globalConfig.DeleteContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Context '%s' deleted", args[0])
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the default context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := globalConfig.UseContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Switched to context '%s'", args[0])
		return nil
	},
}

var configGetContextCmd = &cobra.Command{
	Use:   "get-context",
	Short: "Show the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		if globalConfig.CurrentContext == "" {
			fmt.Println("No current context set")
		} else {
			fmt.Println(globalConfig.CurrentContext)
		}
		return nil
	},
}

var configListContextsCmd = &cobra.Command{
	Use:   "list-contexts",
	Short: "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(globalConfig.Contexts) == 0 {
			fmt.Println("No contexts configured")
			return nil
		}
		for name := range globalConfig.Contexts {
			marker := "  "
			if name == globalConfig.CurrentContext {
				marker = "* "
			}
			fmt.Printf("%s%s\n", marker, name)
		}
		return nil
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View full configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Mask keys before printing.
		view := *globalConfig
		view.Contexts = make(map[string]*cli.Context, len(globalConfig.Contexts))
		for name, ctx := range globalConfig.Contexts {
			masked := *ctx
			masked.OpenAIAPIKey = cli.MaskAPIKey(masked.OpenAIAPIKey)
			view.Contexts[name] = &masked
		}
		return outputResult(&view)
	},
}

func init() {
	configAddContextCmd.Flags().StringP("tenant", "t", "", "Tenant (practice) id (required)")
	configAddContextCmd.Flags().String("channel-base-url", "", "Streaming channel base URL (default: ws://localhost:8000/v1)")
	configAddContextCmd.Flags().String("data-dir", "", "BadgerDB directory for practice records (default: in-memory)")
	configAddContextCmd.Flags().String("archive-dir", "", "Directory for session audio captures (default: disabled)")
	configAddContextCmd.Flags().StringP("openai-api-key", "k", "", "OpenAI API key for SOAP note generation")
	configAddContextCmd.Flags().String("openai-base-url", "", "OpenAI base URL override")
	configAddContextCmd.Flags().StringP("model", "m", "", "Chat model for SOAP notes (default: gpt-4o-mini)")

	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configGetContextCmd)
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configViewCmd)
}
