package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/nuvex/nuvex/client"
	"github.com/nuvex/nuvex/storage/engine"
)

func parseLayer(s string) (*engine.LayerTag, error) {
	if s == "" {
		return nil, nil
	}
	tag, ok := engine.ParseLayerTag(s)
	if !ok {
		return nil, fmt.Errorf("unknown layer %q (want memory, redis, or postgres)", s)
	}
	return &tag, nil
}

var getCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "read a key through the cascade",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		layerFlag, _ := cmd.Flags().GetString("layer")
		layer, err := parseLayer(layerFlag)
		if err != nil {
			return err
		}
		return withClient(func(ctx context.Context, c *client.Client) error {
			v, found, err := c.Get(ctx, args[0], engine.GetOptions{Layer: layer})
			if err != nil {
				return err
			}
			if !found {
				fmt.Println("(not found)")
				return nil
			}
			return printJSON(v)
		})
	},
}

var setCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "write a key via the durable-first protocol",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ttl, _ := cmd.Flags().GetDuration("ttl")
		layerFlag, _ := cmd.Flags().GetString("layer")
		layer, err := parseLayer(layerFlag)
		if err != nil {
			return err
		}
		return withClient(func(ctx context.Context, c *client.Client) error {
			ok, err := c.Set(ctx, args[0], args[1], engine.SetOptions{TTL: ttl, Layer: layer})
			if err != nil {
				return err
			}
			fmt.Println("written:", ok)
			return nil
		})
	},
}

var delCmd = &cobra.Command{
	Use:   "del [key]",
	Short: "delete a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		layerFlag, _ := cmd.Flags().GetString("layer")
		layer, err := parseLayer(layerFlag)
		if err != nil {
			return err
		}
		return withClient(func(ctx context.Context, c *client.Client) error {
			ok, err := c.Delete(ctx, args[0], layer)
			if err != nil {
				return err
			}
			fmt.Println("deleted:", ok)
			return nil
		})
	},
}

var existsCmd = &cobra.Command{
	Use:   "exists [key]",
	Short: "check whether a key is present",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *client.Client) error {
			ok, err := c.Exists(ctx, args[0], nil)
			if err != nil {
				return err
			}
			fmt.Println(ok)
			return nil
		})
	},
}

var expireCmd = &cobra.Command{
	Use:   "expire [key] [ttl]",
	Short: "reset a key's time-to-live",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ttl, err := time.ParseDuration(args[1])
		if err != nil {
			return fmt.Errorf("parsing ttl: %w", err)
		}
		return withClient(func(ctx context.Context, c *client.Client) error {
			ok, err := c.Expire(ctx, args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Println("updated:", ok)
			return nil
		})
	},
}

var incrCmd = &cobra.Command{
	Use:   "incr [key] [delta]",
	Short: "atomically increment a counter",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		delta := int64(1)
		if len(args) == 2 {
			var err error
			delta, err = strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("parsing delta: %w", err)
			}
		}
		ttl, _ := cmd.Flags().GetDuration("ttl")
		return withClient(func(ctx context.Context, c *client.Client) error {
			v, err := c.Increment(ctx, args[0], delta, ttl)
			if err != nil {
				return err
			}
			fmt.Println(v)
			return nil
		})
	},
}

var decrCmd = &cobra.Command{
	Use:   "decr [key] [delta]",
	Short: "atomically decrement a counter",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		delta := int64(1)
		if len(args) == 2 {
			var err error
			delta, err = strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("parsing delta: %w", err)
			}
		}
		ttl, _ := cmd.Flags().GetDuration("ttl")
		return withClient(func(ctx context.Context, c *client.Client) error {
			v, err := c.Decrement(ctx, args[0], delta, ttl)
			if err != nil {
				return err
			}
			fmt.Println(v)
			return nil
		})
	},
}

var keysCmd = &cobra.Command{
	Use:   "keys [pattern]",
	Short: "list keys matching a glob pattern",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pattern := "*"
		if len(args) == 1 {
			pattern = args[0]
		}
		return withClient(func(ctx context.Context, c *client.Client) error {
			keys, err := c.Keys(pattern)
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Println(k)
			}
			return nil
		})
	},
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "enumerate, sort, and paginate keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		pattern, _ := cmd.Flags().GetString("pattern")
		sortBy, _ := cmd.Flags().GetString("sort")
		desc, _ := cmd.Flags().GetBool("desc")
		offset, _ := cmd.Flags().GetInt("offset")
		limit, _ := cmd.Flags().GetInt("limit")

		return withClient(func(ctx context.Context, c *client.Client) error {
			res, err := c.Query(ctx, engine.QueryOptions{
				Pattern: pattern, SortBy: sortBy, Desc: desc, Offset: offset, Limit: limit,
			})
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(res.Items))
			for _, item := range res.Items {
				rows = append(rows, []string{item.Key, fmt.Sprintf("%v", item.Value), item.CreatedAt.Format(time.RFC3339)})
			}
			printTable([]string{"KEY", "VALUE", "CREATED"}, rows)
			if res.HasMore {
				fmt.Println("(more results available)")
			}
			return nil
		})
	},
}

func init() {
	getCmd.Flags().String("layer", "", "restrict the read to one layer: memory, redis, or postgres")
	setCmd.Flags().Duration("ttl", 0, "time-to-live for the written key")
	setCmd.Flags().String("layer", "", "restrict the write to one layer: memory, redis, or postgres")
	delCmd.Flags().String("layer", "", "restrict the delete to one layer: memory, redis, or postgres")
	incrCmd.Flags().Duration("ttl", 0, "time-to-live set on the counter by this increment")
	decrCmd.Flags().Duration("ttl", 0, "time-to-live set on the counter by this decrement")

	queryCmd.Flags().String("pattern", "", "glob or prefix pattern; empty matches everything")
	queryCmd.Flags().String("sort", "key", "sort field: key or createdAt")
	queryCmd.Flags().Bool("desc", false, "sort descending")
	queryCmd.Flags().Int("offset", 0, "pagination offset")
	queryCmd.Flags().Int("limit", 50, "pagination limit")
}
