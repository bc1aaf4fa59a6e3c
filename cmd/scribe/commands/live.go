package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/attunehealth/scribe/pkg/capture"
	"github.com/attunehealth/scribe/pkg/cli"
	"github.com/attunehealth/scribe/pkg/session"
	"github.com/attunehealth/scribe/pkg/transcript"
)

var sessionLiveCmd = &cobra.Command{
	Use:   "live <session-id>",
	Short: "Take a session live with real-time transcription",
	Long: `Take a scheduled session live. Raw 16 kHz mono 16-bit PCM is read from
stdin (or --input) and streamed to the transcription channel; the live
transcript renders as it arrives.

Interrupt (Ctrl-C) stops recording. With --complete the session record is
finalized and the transcript persisted; without it the session stays
in_progress and can be resumed or completed later.

Examples:
  arecord -f S16_LE -r 16000 -c 1 | scribe session live <id> --complete
  scribe session live <id> --input session.pcm`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID := args[0]

		cctx, err := getContext()
		if err != nil {
			return err
		}
		records, db, err := openRecords(cctx)
		if err != nil {
			return err
		}
		defer db.Close()

		var in io.Reader = os.Stdin
		if path, _ := cmd.Flags().GetString("input"); path != "" {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		device := &capture.ReaderDevice{R: in}

		opts := []session.ControllerOption{}
		arch, err := openArchive(cctx)
		if err != nil {
			return err
		}
		if arch != nil {
			tenantID := cctx.TenantID
			opts = append(opts, session.WithAudioArchive(func(id string) (io.WriteCloser, error) {
				return arch.OpenCapture(cmd.Context(), tenantID, id)
			}))
		}

		ctrl := session.NewController(sessionID, records, device, opts...)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := ctrl.Start(ctx); err != nil {
			return err
		}
		cli.PrintInfo("Session %s live. Ctrl-C to stop.", sessionID)

		renderLive(ctx, ctrl)

		complete, _ := cmd.Flags().GetBool("complete")
		if !complete {
			ctrl.Stop()
			cli.PrintInfo("Recording stopped; session %s stays in progress", sessionID)
			return nil
		}

		// The interrupt cancelled ctx; completion needs a fresh one.
		rec, err := ctrl.Complete(context.Background())
		if err != nil {
			return err
		}
		cli.PrintSuccess("Session %s completed (%d segments)", rec.ID, len(ctrl.Transcript().Finals()))
		return outputResult(rec)
	},
}

// renderLive prints finals as they arrive and overwrites the trailing
// interim row in place, until ctx is cancelled.
func renderLive(ctx context.Context, ctrl *session.Controller) {
	styles := cli.DefaultTranscriptStyles()
	printed := 0
	interimShown := false
	warned := false

	clearInterim := func() {
		if interimShown {
			fmt.Print("\r\033[K")
			interimShown = false
		}
	}

	for {
		select {
		case <-ctx.Done():
			clearInterim()
			fmt.Println()
			return
		case <-ctrl.Updates():
			if ctrl.ConnectionLost() && !warned {
				warned = true
				clearInterim()
				fmt.Println(styles.RenderStatus("connection lost; transcript preserved, Ctrl-C to stop"))
			}

			lines := ctrl.Transcript().Lines()
			finals := lines
			var interim *transcript.Line
			if n := len(lines); n > 0 && lines[n-1].Interim {
				finals = lines[:n-1]
				interim = &lines[n-1]
			}

			for ; printed < len(finals); printed++ {
				clearInterim()
				fmt.Print(styles.RenderLines(finals[printed : printed+1]))
			}
			clearInterim()
			if interim != nil {
				row := strings.TrimRight(styles.RenderLines([]transcript.Line{*interim}), "\n")
				fmt.Print("\r" + row)
				interimShown = true
			}
		}
	}
}

func init() {
	sessionLiveCmd.Flags().String("input", "", "PCM input file (default: stdin)")
	sessionLiveCmd.Flags().Bool("complete", false, "Complete the session when recording stops")
}
