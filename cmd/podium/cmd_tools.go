package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jwulff/podium/internal/daemon"
	"github.com/jwulff/podium/internal/engine"
	"github.com/jwulff/podium/internal/mcpserver"
	"github.com/jwulff/podium/internal/scheduler"
	"github.com/spf13/cobra"
)

func newDevicesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List the microphones the speech daemon can use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			socket := opts.cfg.SocketPath
			if socket == "" {
				socket = daemon.SocketPath()
			}
			eng := engine.New(engine.Config{SocketPath: socket, Logger: opts.logger})
			if err := eng.Connect(cmd.Context()); err != nil {
				return fmt.Errorf("speech daemon is not running at %s: %w", socket, err)
			}
			defer eng.Close()

			devices, err := eng.Devices()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, d := range devices {
				marker := " "
				if d == opts.cfg.Device {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s\n", marker, d)
			}
			return nil
		},
	}
}

func newMCPCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve recording history to MCP clients over stdio",
		Long: `Run a Model Context Protocol server on stdin and stdout exposing the
list_recordings, get_recording and recording_stats tools.

Needs the sqlite history backend.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.requireSQLite("mcp"); err != nil {
				return err
			}
			store, err := opts.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			srv := mcpserver.New(store, opts.cfg.UserID, version, opts.logger)
			return srv.Serve(cmd.Context(), os.Stdin, os.Stdout)
		},
	}
}

func newSnapshotCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Create progress snapshots for the last week now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.requireSQLite("snapshot"); err != nil {
				return err
			}
			store, err := opts.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			sched, err := scheduler.New(scheduler.Config{
				Store:  store,
				Spec:   opts.cfg.SnapshotSchedule,
				Logger: opts.logger,
			})
			if err != nil {
				return err
			}
			snaps, err := sched.RunOnce(cmd.Context())
			out := cmd.OutOrStdout()
			if len(snaps) == 0 && err == nil {
				fmt.Fprintln(out, "No recordings in the last week.")
				return nil
			}
			writeSnapshots(out, snaps)
			if next := sched.Next(); !next.IsZero() {
				fmt.Fprintf(out, "\nNext scheduled run: %s\n", next.Local().Format(time.RFC1123))
			}
			return err
		},
	}
}
