package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/consensus-cli/internal/export"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Tally the current revision of a proposal",
	Long:  "Reconciles a proposal's vote history into For/Against/Waiting counts for its current revision, as seen by the given viewer.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		proposalID, _ := cmd.Flags().GetString("proposal")
		viewerID, _ := cmd.Flags().GetString("viewer")

		env, err := initService(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Service.Tally(ctx, proposalID, viewerID)
		if err != nil {
			return err
		}
		for _, a := range res.Anomalies {
			zap.L().Warn("reconcile: anomaly",
				zap.String("proposal_id", proposalID),
				zap.String("code", string(a.Code)),
				zap.String("voter_id", a.VoterID),
				zap.String("detail", a.Detail),
			)
		}
		return writeResult(cmd, export.TallyTable(res), res)
	},
}

func init() {
	reconcileCmd.Flags().String("proposal", "", "proposal ID (required)")
	reconcileCmd.Flags().String("viewer", "", "viewer user ID for already-voted status")
	_ = reconcileCmd.MarkFlagRequired("proposal")
	addOutputFlags(reconcileCmd)
	rootCmd.AddCommand(reconcileCmd)
}
