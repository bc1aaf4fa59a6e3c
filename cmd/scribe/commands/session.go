package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/attunehealth/scribe/pkg/cli"
	"github.com/attunehealth/scribe/pkg/practice"
	"github.com/attunehealth/scribe/pkg/session"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Session lifecycle management",
	Long: `Manage therapy sessions: schedule, list, take live, complete, cancel.

A session moves through scheduled -> in_progress -> completed. Cancelled
sessions never go live.`,
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Schedule a new session",
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

		clientID, _ := cmd.Flags().GetString("client")
		therapistID, _ := cmd.Flags().GetString("therapist")
		at, _ := cmd.Flags().GetString("at")
		liveAssist, _ := cmd.Flags().GetBool("live-assist")

		if clientID == "" || therapistID == "" {
			return fmt.Errorf("client and therapist are required")
		}
		startAt := time.Now()
		if at != "" {
			startAt, err = time.Parse(time.RFC3339, at)
			if err != nil {
				return fmt.Errorf("invalid --at time (want RFC3339): %w", err)
			}
		}

		sess, err := records.CreateSession(cmd.Context(), practice.CreateParams{
			ClientID:    clientID,
			TherapistID: therapistID,
			StartAt:     startAt,
			LiveAssist:  liveAssist,
		})
		if err != nil {
			return err
		}
		cli.PrintSuccess("Session %s scheduled", sess.ID)
		return outputResult(sess)
	},
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, most recent first",
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

		var filter practice.ListFilter
		if s, _ := cmd.Flags().GetString("status"); s != "" {
			filter.Status, err = session.ParseStatus(s)
			if err != nil {
				return err
			}
		}
		filter.Limit, _ = cmd.Flags().GetInt("limit")

		sessions, err := records.ListSessions(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions")
			return nil
		}
		return outputResult(sessions)
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show one session record",
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

		sess, err := records.GetSession(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return outputResult(sess)
	},
}

var sessionCompleteCmd = &cobra.Command{
	Use:   "complete <session-id>",
	Short: "Mark a session completed",
	Long: `Mark a session completed without a live run. Any transcript already
persisted for the session is kept; none is added.`,
	Args: cobra.ExactArgs(1),
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

		sess, err := records.Complete(cmd.Context(), args[0], nil)
		if err != nil {
			return err
		}
		cli.PrintSuccess("Session %s completed", sess.ID)
		return outputResult(sess)
	},
}

var sessionCancelCmd = &cobra.Command{
	Use:   "cancel <session-id>",
	Short: "Cancel a session",
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

		sess, err := records.CancelSession(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		cli.PrintSuccess("Session %s cancelled", sess.ID)
		return nil
	},
}

func init() {
	sessionCreateCmd.Flags().String("client", "", "Client id (required)")
	sessionCreateCmd.Flags().String("therapist", "", "Therapist id (required)")
	sessionCreateCmd.Flags().String("at", "", "Scheduled start time, RFC3339 (default: now)")
	sessionCreateCmd.Flags().Bool("live-assist", false, "Enable live assist for the session")

	sessionListCmd.Flags().String("status", "", "Filter by status (scheduled, in_progress, completed, cancelled)")
	sessionListCmd.Flags().Int("limit", 0, "Limit the number of results")

	sessionCmd.AddCommand(sessionCreateCmd)
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionCompleteCmd)
	sessionCmd.AddCommand(sessionCancelCmd)
	sessionCmd.AddCommand(sessionLiveCmd)
}
