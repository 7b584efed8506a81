package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/consensus-cli/internal/export"
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Build a user's merged feed of tallies and suggestions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		userID, _ := cmd.Flags().GetString("user")

		env, err := initService(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		f, err := env.Service.Feed(ctx, userID)
		if err != nil {
			return err
		}
		return writeResult(cmd, export.FeedTable(f), f)
	},
}

func init() {
	feedCmd.Flags().String("user", "", "user ID (required)")
	_ = feedCmd.MarkFlagRequired("user")
	addOutputFlags(feedCmd)
	rootCmd.AddCommand(feedCmd)
}
