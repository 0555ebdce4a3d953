package cmd

import (
	"fmt"
	"strings"
	"time"

	errorlogtoml "github.com/bnema/kmlx/internal/adapters/errorlog/toml"
	"github.com/spf13/cobra"
)

func newErrorsCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "errors",
		Short: "Show the row errors saved by a parse run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := errorlogtoml.NewStore(path)
			if err != nil {
				return err
			}
			report, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !report.RunAt.IsZero() {
				if _, err := fmt.Fprintf(out, "Run at %s\n", report.RunAt.Local().Format(time.RFC1123)); err != nil {
					return err
				}
			}
			if len(report.SourceFiles) > 0 {
				if _, err := fmt.Fprintf(out, "Sources: %s\n", strings.Join(report.SourceFiles, ", ")); err != nil {
					return err
				}
			}
			return writeErrorTable(out, "Row errors", report.Errors)
		},
	}

	cmd.Flags().StringVar(&path, "file", "", "Error log written by parse")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
