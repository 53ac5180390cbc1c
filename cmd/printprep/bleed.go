package main

import (
	"fmt"
	"os"

	"github.com/daisler/print-analyzer/internal/bleed"
	"github.com/daisler/print-analyzer/internal/imageio"
	"github.com/daisler/print-analyzer/internal/logger"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newBleedCmd() *cobra.Command {
	var pad string

	cmd := &cobra.Command{
		Use:   "bleed <input> <output.png>",
		Short: "Add a mirrored bleed border and trim guide to an image",
		Long: `Extends the image by the given number of pixels on every side, filling the
border with mirrored copies of the image's edges, and draws the trim line.

Pad values that are not integers fall back to the default of 30px.`,
		Example: `  printprep bleed flyer.jpg flyer-bleed.png --pad 36`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := loadImageFile(args[0])
			if err != nil {
				return err
			}

			px := bleed.ParsePad(pad)
			canvas := bleed.Process(img, px)

			out, err := os.Create(args[1])
			if err != nil {
				return fmt.Errorf("failed to create output: %w", err)
			}
			if err := imageio.EncodePNG(out, canvas); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}

			logger.WithFields(logrus.Fields{
				"input":    args[0],
				"output":   args[1],
				"bleed_px": max(px, 0),
			}).Debug("Wrote bleed image")

			b := canvas.Bounds()
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%dx%d, bleed %dpx)\n", args[1], b.Dx(), b.Dy(), max(px, 0))
			return err
		},
	}

	cmd.Flags().StringVarP(&pad, "pad", "p", fmt.Sprint(bleed.DefaultPad), "Bleed width in pixels")

	return cmd
}
