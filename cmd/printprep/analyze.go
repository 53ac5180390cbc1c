package main

import (
	"encoding/json"
	"fmt"

	"github.com/daisler/print-analyzer/internal/analyzer"
	"github.com/daisler/print-analyzer/internal/logger"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		useCase string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <image>",
		Short: "Report print readiness of an image for a product",
		Example: `  # Check a business card design
  printprep analyze card.png --use-case "business card"

  # Machine-readable output
  printprep analyze sticker.jpg --use-case sticker --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := loadImageFile(args[0])
			if err != nil {
				return err
			}

			report := analyzer.Analyze(img, useCase)
			logger.WithFields(logrus.Fields{
				"file":       args[0],
				"use_case":   useCase,
				"resolution": report.Resolution,
			}).Debug("Analyzed image")

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			_, err = fmt.Fprint(out, report.String())
			return err
		},
	}

	cmd.Flags().StringVarP(&useCase, "use-case", "u", "", "Print product, e.g. \"business card\", poster, sticker")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the structured report as JSON")
	_ = cmd.MarkFlagRequired("use-case")

	return cmd
}
