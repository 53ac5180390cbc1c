package main

import (
	"fmt"
	"image"
	"os"

	"github.com/daisler/print-analyzer/internal/imageio"
	"github.com/daisler/print-analyzer/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "printprep",
		Short: "Print-readiness analysis and bleed generation for local images",
		Long: `printprep runs the same checks as the print analyzer API against files on disk.

It can report whether an image suits a print product and render a copy with a
mirrored bleed border and a trim guide.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			logger.Configure(os.Getenv("LOG_LEVEL"), cmd.ErrOrStderr())
		},
	}

	cmd.AddCommand(newAnalyzeCmd(), newBleedCmd())
	return cmd
}

func loadImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, err := imageio.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}
