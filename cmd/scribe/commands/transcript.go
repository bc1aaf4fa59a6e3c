package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var transcriptCmd = &cobra.Command{
	Use:   "transcript <session-id>",
	Short: "Show a session's persisted transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cctx, err := getContext()
		if err != nil {
			return err
		}
		records, db, err := openRecords(cctx)
		if err != nil {
			return err
		}
		defer db.Close()

		saved, err := records.SavedTranscript(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !saved.HasTranscript {
			fmt.Println("No transcript for this session")
			return nil
		}
		if outputJSON {
			return outputResult(saved)
		}

		var b strings.Builder
		for _, seg := range saved.Segments {
			if seg.Speaker != nil {
				fmt.Fprintf(&b, "Speaker %d: %s\n", *seg.Speaker, seg.Text)
			} else {
				b.WriteString(seg.Text)
				b.WriteByte('\n')
			}
		}
		fmt.Print(b.String())
		return nil
	},
}
