package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/flatdoc/internal/config"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create configuration files",
		Long: `Configuration is read from flatdoc.yaml in the search paths, FLATDOC_*
environment variables and command-line flags, in increasing priority.

Examples:
  flatdoc config init
  flatdoc config show --format json
  FLATDOC_RECTIFY_KERNEL=scharr flatdoc config show`,
	}
	cmd.AddCommand(newConfigInitCommand(), newConfigShowCommand(a), newConfigPathsCommand(a))
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration as YAML",
		Args:  cobra.NoArgs,
		Annotations: map[string]string{
			skipConfigAnnotation: "true",
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			force, _ := cmd.Flags().GetBool("force")
			path, err := config.GenerateDefaultConfigFile(output, force)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
			return err
		},
	}
	cmd.Flags().StringP("output", "o", config.ConfigFileName+".yaml", "file to write")
	cmd.Flags().Bool("force", false, "overwrite an existing file")
	return cmd
}

func newConfigShowCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			switch format {
			case "json":
				return writeJSON(cmd.OutOrStdout(), a.cfg)
			case "yaml":
				data, err := a.cfg.ToYAML()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			default:
				return fmt.Errorf("invalid format %q (must be yaml or json)", format)
			}
		},
	}
	cmd.Flags().String("format", "yaml", "output format: yaml or json")
	return cmd
}

func newConfigPathsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Show where configuration is loaded from",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			a.loader.PrintConfigInfo(cmd.OutOrStdout())
		},
	}
}
