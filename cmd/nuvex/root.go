package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nuvex/nuvex/client"
	"github.com/nuvex/nuvex/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "nuvex",
	Short: "operate a nuvex tiered key-value store",
	Long: `nuvex is a tiered (memory, redis, postgres) key-value storage engine.

This CLI loads configuration, connects the requested layers, performs one
operation, and disconnects. It is intended for scripting and inspection.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a nuvex YAML configuration file")

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(delCmd)
	rootCmd.AddCommand(existsCmd)
	rootCmd.AddCommand(expireCmd)
	rootCmd.AddCommand(incrCmd)
	rootCmd.AddCommand(decrCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(healthCmd)
}

// withClient loads configuration, connects a Client, runs fn, and always
// disconnects before returning.
func withClient(fn func(ctx context.Context, c *client.Client) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	c := client.New(cfg)
	ctx := context.Background()
	if err := c.Connect(ctx); err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	defer c.Disconnect(ctx)

	return fn(ctx, c)
}
