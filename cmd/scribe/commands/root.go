package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/attunehealth/scribe/pkg/archive"
	"github.com/attunehealth/scribe/pkg/cli"
	"github.com/attunehealth/scribe/pkg/kv"
	"github.com/attunehealth/scribe/pkg/practice"
)

var (
	// Global flags
	cfgFile     string
	contextName string
	outputJSON  bool
	verbose     bool

	// Global configuration
	globalConfig *cli.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "scribe",
	Short: "Therapy session scribe for behavioral health practices",
	Long: `scribe - Live transcription and record keeping for therapy sessions.

Sessions are scheduled, taken live with real-time transcription, completed
with a persisted transcript, and summarized into SOAP clinical notes.

Configuration is stored in ~/.scribe/ and supports multiple contexts
(one per practice or environment), similar to kubectl's context management.

Examples:
  # Set up a context for a practice
  scribe config add-context clinic --tenant tenant-a --data-dir ~/.scribe/data

  # Schedule a session
  scribe -c clinic session create --client client-1 --therapist therapist-1

  # Go live, streaming microphone PCM from stdin
  arecord -f S16_LE -r 16000 -c 1 | scribe -c clinic session live <id>

  # Generate the SOAP note afterwards
  scribe -c clinic summarize <id>
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.scribe/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "context name to use")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON (for piping)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(transcriptCmd)
	rootCmd.AddCommand(summarizeCmd)
}

func initConfig() {
	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	var err error
	globalConfig, err = cli.LoadConfigWithPath(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: config: %v\n", err)
	}
}

// getContext returns the context configuration to use.
func getContext() (*cli.Context, error) {
	if globalConfig == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	ctx, err := globalConfig.ResolveContext(contextName)
	if err != nil {
		if contextName == "" {
			return nil, fmt.Errorf("no context specified. Use -c flag or set a default context with 'scribe config use-context'")
		}
		return nil, err
	}
	return ctx, nil
}

// openRecords opens the practice record store for the context. The caller
// must close the returned kv store.
func openRecords(cctx *cli.Context) (*practice.Tenant, kv.Store, error) {
	var (
		db  kv.Store
		err error
	)
	if cctx.DataDir == "" {
		db = kv.NewMemory()
	} else {
		db, err = kv.NewBadger(kv.BadgerOptions{Dir: cctx.DataDir})
		if err != nil {
			return nil, nil, fmt.Errorf("open record store: %w", err)
		}
	}
	baseURL := cctx.ChannelBaseURL
	if baseURL == "" {
		baseURL = "ws://localhost:8000/v1"
	}
	return practice.New(db, baseURL).Tenant(cctx.TenantID), db, nil
}

// openArchive opens the session audio archive, or returns nil when the
// context has no archive directory.
func openArchive(cctx *cli.Context) (*archive.Archive, error) {
	if cctx.ArchiveDir == "" {
		return nil, nil
	}
	disk, err := archive.NewDisk(cctx.ArchiveDir)
	if err != nil {
		return nil, fmt.Errorf("open audio archive: %w", err)
	}
	return archive.New(disk), nil
}

// outputResult renders a result as YAML, or JSON with --json.
func outputResult(result any) error {
	format := cli.FormatYAML
	if outputJSON {
		format = cli.FormatJSON
	}
	return cli.Output(result, cli.OutputOptions{Format: format})
}
