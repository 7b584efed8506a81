package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/consensus-cli/internal/export"
)

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().String("format", "table", "output format: table, csv, json or xlsx")
	cmd.Flags().String("output", "", "write to this file instead of stdout")
}

// writeResult renders t (or v, for JSON) in the format and destination
// chosen by the command's output flags.
func writeResult(cmd *cobra.Command, t export.Table, v any) error {
	name, _ := cmd.Flags().GetString("format")
	format, err := export.ParseFormat(name)
	if err != nil {
		return err
	}
	path, _ := cmd.Flags().GetString("output")
	if format == export.FormatXLSX && path == "" {
		return eris.New("xlsx output requires --output")
	}

	var w io.Writer = cmd.OutOrStdout()
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "create output %s", path)
		}
		defer f.Close() //nolint:errcheck
		w = f
	}
	return export.Write(w, format, t, v)
}
