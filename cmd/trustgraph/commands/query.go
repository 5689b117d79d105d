package commands

import (
	"strings"

	"github.com/google/uuid"
	"github.com/l3montree-dev/trustgraph/dtos"
	"github.com/l3montree-dev/trustgraph/normalize"
	"github.com/l3montree-dev/trustgraph/utils"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newMatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match <purl|cpe>",
		Short: "List the vulnerability statuses of a package or product",
		Long: `match prints every status whose version range contains the version of the
given purl. A purl without a version matches every range. For a CPE the
version is given with --version.`,
		Example: `  trustgraph match pkg:maven/org.apache.logging.log4j/log4j-core@2.14.1
  trustgraph match cpe:/a:apache:tomcat --version 9.0.1 --vulnerability CVE-2020-1938`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			var query dtos.StatusQuery
			if deprecated, _ := flags.GetBool("include-deprecated"); deprecated {
				query.Deprecation = dtos.DeprecationConsider
			}
			if vuln, _ := flags.GetString("vulnerability"); vuln != "" {
				query.VulnerabilityID = utils.Ptr(vuln)
			}
			if context, _ := flags.GetString("context"); context != "" {
				cpe, err := normalize.ParseCpe(context)
				if err != nil {
					return err
				}
				query.Context = &cpe
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			if strings.HasPrefix(args[0], "cpe:") {
				cpe, err := normalize.ParseCpe(args[0])
				if err != nil {
					return err
				}
				version, _ := flags.GetString("version")
				matches, err := a.graph.ProductStatuses(cmd.Context(), cpe, version, query)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), matches)
			}

			purl, err := normalize.ParsePurl(args[0])
			if err != nil {
				return err
			}
			matches, err := a.graph.PurlStatuses(cmd.Context(), purl, query)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), matches)
		},
	}
	cmd.Flags().String("vulnerability", "", "Only statuses of this vulnerability")
	cmd.Flags().Bool("include-deprecated", false, "Include statuses of superseded advisory versions")
	cmd.Flags().String("context", "", "CPE of the environment, e.g. the distribution the package runs on")
	cmd.Flags().String("version", "", "Product version, only used with a CPE")
	return cmd
}

func newDescribeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe <sbom-id>",
		Short: "Print the packages of an SBOM",
		Long: `describe prints the packages the SBOM describes, following contained and
dependency edges up to --depth. With --node the direct neighbours of one node
are printed instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sbomID, err := uuid.Parse(args[0])
			if err != nil {
				return errors.Wrap(err, "invalid sbom id")
			}
			flags := cmd.Flags()
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}

			if external, _ := flags.GetBool("external"); external {
				nodes, err := a.graph.ExternalNodes(cmd.Context(), sbomID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), nodes)
			}

			if node, _ := flags.GetString("node"); node != "" {
				whichFlag, _ := flags.GetString("which")
				which, ok := dtos.ParseWhich(whichFlag)
				if !ok {
					return errors.Errorf("invalid value %q for --which, expected left, right or either", whichFlag)
				}
				var rel *normalize.Relationship
				if relFlag, _ := flags.GetString("relationship"); relFlag != "" {
					parsed, err := normalize.ParseRelationship(relFlag)
					if err != nil {
						return err
					}
					rel = &parsed
				}
				related, err := a.graph.RelatedPackages(cmd.Context(), sbomID, node, rel, which)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), related)
			}

			depth, _ := flags.GetInt("depth")
			packages, err := a.graph.DescribedPackages(cmd.Context(), sbomID, depth)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), packages)
		},
	}
	cmd.Flags().Int("depth", 1, "How many edges to follow from the described nodes")
	cmd.Flags().String("node", "", "Print the neighbours of this node instead")
	cmd.Flags().String("relationship", "", "Only follow edges of this relationship, e.g. ContainedBy")
	cmd.Flags().String("which", "either", "Side of the edge the node is on. Options: left, right, either")
	cmd.Flags().Bool("external", false, "Print the nodes referring to other documents")
	return cmd
}

func newVulnerabilityCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "vulnerability <id>",
		Aliases: []string{"vuln"},
		Short:   "Print a vulnerability with its descriptions, scores and advisories",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			details, err := a.graph.Vulnerability(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), details)
		},
	}
}

func newDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete ingested documents",
	}
	deleteOf := func(kind string, del func(cmd *cobra.Command, id uuid.UUID) error) *cobra.Command {
		return &cobra.Command{
			Use:   kind + " <id>",
			Short: "Delete an " + kind + " together with its stored source document",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return errors.Wrapf(err, "invalid %s id", kind)
				}
				return del(cmd, id)
			},
		}
	}
	cmd.AddCommand(
		deleteOf("sbom", func(cmd *cobra.Command, id uuid.UUID) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			return a.graph.DeleteSbom(cmd.Context(), id)
		}),
		deleteOf("advisory", func(cmd *cobra.Command, id uuid.UUID) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			return a.graph.DeleteAdvisory(cmd.Context(), id)
		}),
	)
	return cmd
}

func newSbomsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sboms",
		Short: "List ingested SBOMs, latest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			sboms, err := a.graph.ListSboms(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sboms)
		},
	}
	cmd.Flags().Int("limit", 50, "Number of SBOMs")
	cmd.Flags().Int("offset", 0, "Number of SBOMs to skip")
	return cmd
}

func newAdvisoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "advisory <identifier>",
		Short: "Print the current version of an advisory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			if all, _ := cmd.Flags().GetBool("all"); all {
				versions, err := a.graph.AdvisoryVersions(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), versions)
			}
			latest, err := a.graph.LatestAdvisory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), latest)
		},
	}
	cmd.Flags().Bool("all", false, "Print every ingested version, including deprecated ones")
	return cmd
}
