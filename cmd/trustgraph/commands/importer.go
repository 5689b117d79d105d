// Copyright 2026 l3montree GmbH.
// SPDX-License-Identifier: 	AGPL-3.0-or-later

package commands

import (
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/l3montree-dev/trustgraph/importer"
	"github.com/spf13/cobra"
)

func newImporterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "importer",
		Short: "Manage importers that walk external document sources",
	}
	cmd.AddCommand(
		newImporterCreateCommand(),
		newImporterListCommand(),
		newImporterRunCommand(),
		newImporterReportsCommand(),
		newImporterDeleteCommand(),
		newImporterDaemonCommand(),
	)
	return cmd
}

func definitionFromFlags(cmd *cobra.Command, name string) (importer.Definition, error) {
	flags := cmd.Flags()
	sourceFlag, _ := flags.GetString("source")
	kindFlag, _ := flags.GetString("kind")
	source, err := importer.ParseSourceType(sourceFlag)
	if err != nil {
		return importer.Definition{}, err
	}
	kind, err := importer.ParseDocumentKind(kindFlag)
	if err != nil {
		return importer.Definition{}, err
	}
	period, _ := flags.GetDuration("period")
	disabled, _ := flags.GetBool("disabled")

	var c importer.Configuration
	c.URL, _ = flags.GetString("url")
	c.Branch, _ = flags.GetString("branch")
	c.Dir, _ = flags.GetString("dir")
	c.BaseURL, _ = flags.GetString("base-url")
	c.Root, _ = flags.GetString("root")
	c.Globs, _ = flags.GetStringSlice("glob")
	c.Token, _ = flags.GetString("token")
	c.Format, _ = flags.GetString("format")
	c.Labels, _ = flags.GetStringToString("label")

	return importer.Definition{
		Name:          name,
		Source:        source,
		Kind:          kind,
		Configuration: c,
		Period:        period,
		Disabled:      disabled,
	}, nil
}

func newImporterCreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an importer, or replace its definition with --update",
		Example: `  # Mirror the OSV advisories of PyPI
  trustgraph importer create osv-pypi --source git --kind advisory \
    --url https://github.com/pypa/advisory-database --glob 'vulns/**/*.yaml' --period 6h

  # Import the CSAF documents of a provider
  trustgraph importer create acme --source http --kind advisory \
    --base-url https://acme.example/.well-known/csaf/white --period 1h`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			definition, err := definitionFromFlags(cmd, args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			if update, _ := cmd.Flags().GetBool("update"); update {
				return a.importers.Update(cmd.Context(), definition)
			}
			_, err = a.importers.Create(cmd.Context(), definition)
			return err
		},
	}
	flags := cmd.Flags()
	flags.String("source", "", "Where the documents come from. Options: git, http, filesystem")
	flags.String("kind", "", "What the documents are. Options: sbom, advisory")
	flags.Duration("period", 24*time.Hour, "How often the importer runs")
	flags.Bool("disabled", false, "Create the importer without scheduling it")
	flags.Bool("update", false, "Replace the definition of an existing importer")
	flags.String("url", "", "git: repository to clone")
	flags.String("branch", "", "git: branch to follow")
	flags.String("dir", "", "git: checkout directory or an existing repository")
	flags.String("base-url", "", "http: directory containing changes.csv")
	flags.String("root", "", "filesystem: directory to walk")
	flags.StringSlice("glob", nil, "Files to import, e.g. 'advisories/**/*.json'")
	flags.String("token", "", "Token to authenticate against the source")
	flags.String("format", "", "Force a document format instead of detecting it")
	flags.StringToString("label", nil, "Label to attach to every imported document")
	return cmd
}

func newImporterListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List importers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			importers, err := a.importers.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSOURCE\tKIND\tSTATE\tPERIOD\tLAST SUCCESS\tLAST ERROR")
			for _, i := range importers {
				lastSuccess, lastError := "-", "-"
				if i.LastSuccess != nil {
					lastSuccess = i.LastSuccess.Format(time.RFC3339)
				}
				if i.LastError != nil {
					lastError = *i.LastError
				}
				state := string(i.State)
				if i.Disabled {
					state = "disabled"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", i.Name, i.Source, i.Kind, state, i.Period, lastSuccess, lastError)
			}
			return w.Flush()
		},
	}
}

func newImporterRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run <name>",
		Short: "Run an importer once and print its report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			report, runErr := a.importers.Run(ctx, args[0])
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			return runErr
		},
	}
}

func newImporterReportsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports <name>",
		Short: "Print the latest run reports of an importer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			reports, err := a.importers.Reports(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), reports)
		},
	}
	cmd.Flags().Int("limit", 10, "Number of reports")
	return cmd
}

func newImporterDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an importer and its reports, imported documents are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			return a.importers.Delete(cmd.Context(), args[0])
		},
	}
}

func newImporterDaemonCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run due importers until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			return a.importers.Daemon(ctx, cfg.Importer.Tick)
		},
	}
}
