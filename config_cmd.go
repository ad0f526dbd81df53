package main

import (
	"github.com/spf13/cobra"

	"github.com/tonimelisma/ftp-mirror/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		RunE:  runConfigShow,
	}

	// Accepted so the override chain can be inspected for a specific run.
	cmd.Flags().String("host", "", "FTP server host")
	cmd.Flags().String("user", "", "login name")
	cmd.Flags().String("local-dir", "", "local directory")
	cmd.Flags().String("remote-root", "", "remote directory")

	return cmd
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	cfg := cc.mustConfig()

	if cc.Flags.JSON {
		return printJSON(cmd.OutOrStdout(), cfg)
	}

	return config.RenderEffective(cfg, cmd.OutOrStdout())
}
