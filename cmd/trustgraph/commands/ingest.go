// Copyright 2026 l3montree GmbH.
// SPDX-License-Identifier: 	AGPL-3.0-or-later

package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/l3montree-dev/trustgraph/graph"
	"github.com/l3montree-dev/trustgraph/shared"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newIngestCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Ingest SBOMs and advisories",
		Long: `Ingest stores each file as one document. The format is detected from the
document unless --format is given. Use - to read from stdin.

Broken documents are reported and skipped, the command fails when any file
could not be ingested.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatFlag, _ := cmd.Flags().GetString("format")
			labels, _ := cmd.Flags().GetStringToString("label")
			format, err := graph.ParseDocumentFormat(formatFlag)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}

			failed := 0
			for _, path := range args {
				data, err := readInput(cmd, path)
				if err != nil {
					return err
				}
				result, err := a.graph.Ingest(cmd.Context(), format, data, labels)
				if err != nil {
					if shared.IsSystemic(err) || shared.IsCanceled(err) {
						return errors.Wrapf(err, "could not ingest %s", path)
					}
					slog.Error("document rejected", "file", path, "kind", shared.KindOf(err), "err", err)
					failed++
					continue
				}
				for _, warning := range result.Warnings {
					slog.Warn("ingested with warning", "file", path, "warning", warning)
				}
				if err := printJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
			}
			if failed > 0 {
				return errors.Errorf("%d of %d documents were rejected", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().String("format", "", "Document format. Options: spdx, cyclonedx, clearlydefined, csaf, osv, cve, openvex")
	cmd.Flags().StringToString("label", nil, "Label to attach to the documents, e.g. --label source=manual")
	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read %s", path)
	}
	return data, nil
}
