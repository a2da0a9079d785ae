package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nuvex/nuvex/client"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "write a backup envelope under ./nuvex-backups",
	RunE: func(cmd *cobra.Command, args []string) error {
		incremental, _ := cmd.Flags().GetBool("incremental")
		compressed, _ := cmd.Flags().GetBool("compressed")
		typ := client.BackupFull
		if incremental {
			typ = client.BackupIncremental
		}
		return withClient(func(ctx context.Context, c *client.Client) error {
			id, err := c.Backup(ctx, client.BackupOptions{Type: typ, Compressed: compressed})
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		})
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore [backup-id]",
	Short: "restore every key from a backup envelope",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		clear, _ := cmd.Flags().GetBool("clear")
		return withClient(func(ctx context.Context, c *client.Client) error {
			n, err := c.Restore(ctx, args[0], client.RestoreOptions{Clear: clear, DryRun: dryRun})
			if err != nil {
				return err
			}
			if dryRun {
				fmt.Printf("would restore %d keys\n", n)
				return nil
			}
			fmt.Printf("restored %d keys\n", n)
			return nil
		})
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "print the engine's counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *client.Client) error {
			m, err := c.GetMetrics(nil)
			if err != nil {
				return err
			}
			return printJSON(m)
		})
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "ping every configured layer",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *client.Client) error {
			res, err := c.HealthCheck(ctx, nil)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(res.Layers))
			for layer, up := range res.Layers {
				rows = append(rows, []string{layer, strconv.FormatBool(up)})
			}
			printTable([]string{"LAYER", "UP"}, rows)
			fmt.Printf("system.memoryAvailable: %s\n", humanize.Bytes(res.SystemMemoryAvailable))
			return nil
		})
	},
}

func init() {
	backupCmd.Flags().Bool("incremental", false, "record this backup as incremental (marker only; every reachable key is still written)")
	backupCmd.Flags().Bool("compressed", false, "gzip the backup envelope")
	restoreCmd.Flags().Bool("dry-run", false, "report how many keys would be restored without writing them")
	restoreCmd.Flags().Bool("clear", false, "clear every existing key before restoring")
}
