package commands

import (
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/spf13/cobra"

	"github.com/attunehealth/scribe/pkg/cli"
	"github.com/attunehealth/scribe/pkg/session"
	"github.com/attunehealth/scribe/pkg/soap"
)

const defaultModel = "gpt-4o-mini"

var summarizeCmd = &cobra.Command{
	Use:   "summarize <session-id>",
	Short: "Generate a SOAP note from a completed session",
	Long: `Generate a SOAP clinical note (subjective, objective, assessment, plan)
from a session's persisted transcript and store it on the session record.

The session must be completed and have a transcript.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID := args[0]

		cctx, err := getContext()
		if err != nil {
			return err
		}
		if cctx.OpenAIAPIKey == "" {
			return fmt.Errorf("context has no openai_api_key; add one with 'scribe config add-context'")
		}
		records, db, err := openRecords(cctx)
		if err != nil {
			return err
		}
		defer db.Close()

		sess, err := records.GetSession(cmd.Context(), sessionID)
		if err != nil {
			return err
		}
		if sess.Status != session.StatusCompleted {
			return fmt.Errorf("session %s is %s; only completed sessions can be summarized", sessionID, sess.Status)
		}

		saved, err := records.SavedTranscript(cmd.Context(), sessionID)
		if err != nil {
			return err
		}
		if !saved.HasTranscript {
			return soap.ErrNoTranscript
		}

		clientOpts := []option.RequestOption{option.WithAPIKey(cctx.OpenAIAPIKey)}
		if cctx.OpenAIBaseURL != "" {
			clientOpts = append(clientOpts, option.WithBaseURL(cctx.OpenAIBaseURL))
		}
		client := openai.NewClient(clientOpts...)

		model := cctx.Model
		if model == "" {
			model = defaultModel
		}

		sum, err := soap.NewSummarizer(&client, model).Summarize(cmd.Context(), saved.Segments)
		if err != nil {
			return err
		}
		if _, err := records.SetSummary(cmd.Context(), sessionID, sum); err != nil {
			return err
		}

		cli.PrintSuccess("SOAP note stored for session %s", sessionID)
		return outputResult(sum)
	},
}
