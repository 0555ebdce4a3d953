package cmd

import (
	"fmt"

	"github.com/bnema/kmlx/internal/application"
	"github.com/bnema/kmlx/internal/logging"
	"github.com/spf13/cobra"
)

type splitOptions struct {
	input             string
	output            string
	placementsPerFile int
	dryRun            bool
}

func newSplitCmd(app *app) *cobra.Command {
	opts := &splitOptions{}

	cmd := &cobra.Command{
		Use:     "split",
		Short:   "Split a KML document into smaller documents",
		Example: "  kmlx split -f trip.kml -o out/trip.kml --placements-per-file 2000",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSplit(cmd, app, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "file", "f", "", "KML file to split (local path or s3://bucket/key.kml)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output name; chunks are numbered after its base name")
	cmd.Flags().IntVar(&opts.placementsPerFile, "placements-per-file", 0, "Placemarks per output file")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Only report how many files would be written")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("output")
	_ = cmd.MarkFlagRequired("placements-per-file")

	return cmd
}

func runSplit(cmd *cobra.Command, app *app, opts *splitOptions) error {
	reader, err := newDocumentReader(app.config, opts.input)
	if err != nil {
		return err
	}
	target, err := newDocumentTarget(app.config, opts.output)
	if err != nil {
		return err
	}

	service := application.NewSplitService(reader, target.store, logging.NewLogger("split"))
	result, err := service.Split(cmd.Context(), application.SplitRequest{
		Input:             opts.input,
		OutputName:        target.name,
		PlacementsPerFile: opts.placementsPerFile,
		DryRun:            opts.dryRun,
	})
	if err != nil {
		return err
	}

	rendered, err := app.splitRenderer(result, opts.dryRun)
	if err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}
