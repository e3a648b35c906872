package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/715d/targetprobe/internal/toolchain"
)

type zigInfo struct {
	Command       string `json:"command"`
	Version       string `json:"version"`
	LibDir        string `json:"lib_dir"`
	LibcxxVersion int    `json:"libcxx_version"`
	Target        string `json:"target,omitempty"`
}

func newZigCmd(cfg *Config, run toolchain.Runner) *cobra.Command {
	var triple string
	cmd := &cobra.Command{
		Use:   "zig",
		Short: "Show the zig toolchain targetprobe would use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			zig, err := toolchain.FindZig(ctx, run)
			if err != nil {
				return errWithCode(err, exitError)
			}
			libDir, err := zig.LibDir(ctx, run)
			if err != nil {
				return errWithCode(err, exitError)
			}
			info := zigInfo{
				Command:       zig.Command.String(),
				Version:       zig.Version,
				LibDir:        libDir,
				LibcxxVersion: toolchain.LibcxxVersion(zig.Version),
			}
			if triple != "" {
				if info.Target, err = toolchain.ZigTarget(triple); err != nil {
					return errWithCode(err, exitError)
				}
			}

			out := cmd.OutOrStdout()
			if cfg.JSON {
				data, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return errWithCode(fmt.Errorf("marshaling json output: %w", err), exitError)
				}
				_, err = fmt.Fprintln(out, string(data))
				return err
			}
			fmt.Fprintf(out, "command:        %s\n", info.Command)
			fmt.Fprintf(out, "version:        %s\n", info.Version)
			fmt.Fprintf(out, "lib dir:        %s\n", info.LibDir)
			fmt.Fprintf(out, "libc++ version: %d\n", info.LibcxxVersion)
			if info.Target != "" {
				fmt.Fprintf(out, "target:         %s\n", info.Target)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&triple, "target", "", "Also show the zig -target value for this triple")
	return cmd
}
