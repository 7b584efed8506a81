package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/consensus-cli/internal/export"
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Describe what each renegotiation of a proposal changed",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		proposalID, _ := cmd.Flags().GetString("proposal")

		env, err := initService(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		entries, err := env.Service.Diff(ctx, proposalID)
		if err != nil {
			return err
		}
		return writeResult(cmd, export.DiffTable(proposalID, entries), entries)
	},
}

func init() {
	diffCmd.Flags().String("proposal", "", "proposal ID (required)")
	_ = diffCmd.MarkFlagRequired("proposal")
	addOutputFlags(diffCmd)
	rootCmd.AddCommand(diffCmd)
}
