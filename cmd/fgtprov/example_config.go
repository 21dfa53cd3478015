package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bcnelson/fortigate-addr-provisioner/internal/config"
	"github.com/spf13/cobra"
)

func newExampleConfigCmd(opts *rootOptions) *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "example-config",
		Short: "Print example config and firewall inventory files.",
		Long: `Prints a sample general config and firewall inventory. With --write the
samples are written to the --config and --firewall-config paths; existing
files are never overwritten.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !write {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "# %s\n%s\n# %s\n%s", opts.configPath, config.ExampleConfig, opts.firewallConfig, config.ExampleInventory)
				return nil
			}
			samples := []struct{ path, content string }{
				{opts.configPath, config.ExampleConfig},
				{opts.firewallConfig, config.ExampleInventory},
			}
			for _, s := range samples {
				if err := writeExample(s.path, s.content); err != nil {
					return fail(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", s.path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "write the samples to the config paths")

	return cmd
}

func writeExample(path, content string) error {
	path, err := config.ExpandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0600)
}
