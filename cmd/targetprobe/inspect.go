package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/715d/targetprobe/pkg/marker"
)

func newInspectCmd(cfg *Config) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "inspect <dir> [packages...]",
		Short: "List the platform markers declared in Go packages",
		Example: `  targetprobe inspect ./sysdep
  targetprobe inspect . ./... --prefix zb_`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			markers, err := marker.Find(cmd.Context(), args[0], prefix, args[1:]...)
			if err != nil {
				return errWithCode(fmt.Errorf("inspect: %w", err), exitError)
			}

			out := cmd.OutOrStdout()
			if cfg.JSON {
				if markers == nil {
					markers = []marker.Marker{}
				}
				data, err := json.MarshalIndent(markers, "", "  ")
				if err != nil {
					return errWithCode(fmt.Errorf("marshaling json output: %w", err), exitError)
				}
				_, err = fmt.Fprintln(out, string(data))
				return err
			}
			for _, m := range markers {
				fmt.Fprintf(out, "%s\t%s\n", m.Name, m.Platform)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", marker.DefaultPrefix, "Prefix of marker type names")
	return cmd
}
