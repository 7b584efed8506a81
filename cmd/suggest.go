package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/consensus-cli/internal/export"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Rank open proposals that fit a user's capabilities",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		userID, _ := cmd.Flags().GetString("user")

		env, err := initService(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		scores, err := env.Service.Suggestions(ctx, userID)
		if err != nil {
			return err
		}
		return writeResult(cmd, export.SuggestionTable(userID, scores), scores)
	},
}

func init() {
	suggestCmd.Flags().String("user", "", "user ID (required)")
	_ = suggestCmd.MarkFlagRequired("user")
	addOutputFlags(suggestCmd)
	rootCmd.AddCommand(suggestCmd)
}
