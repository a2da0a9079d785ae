package client

import (
	"context"
	"strings"

	"github.com/nuvex/nuvex/storage/engine"
)

// namespacedKey composes "<ns>:<key>" (spec.md: "namespaces are expressed
// by convention as \"<ns>:<subkey>\"").
func namespacedKey(ns, key string) string {
	return ns + ":" + key
}

// NamespaceGet reads "<ns>:<key>".
func (c *Client) NamespaceGet(ctx context.Context, ns, key string, opts engine.GetOptions) (interface{}, bool, error) {
	return c.Get(ctx, namespacedKey(ns, key), opts)
}

// NamespaceSet writes "<ns>:<key>".
func (c *Client) NamespaceSet(ctx context.Context, ns, key string, v interface{}, opts engine.SetOptions) (bool, error) {
	return c.Set(ctx, namespacedKey(ns, key), v, opts)
}

// NamespaceKeys lists every key under ns, with the "<ns>:" prefix stripped.
func (c *Client) NamespaceKeys(ns string) ([]string, error) {
	full, err := c.Keys(ns + ":")
	if err != nil {
		return nil, err
	}
	subkeys := make([]string, 0, len(full))
	prefix := ns + ":"
	for _, k := range full {
		subkeys = append(subkeys, strings.TrimPrefix(k, prefix))
	}
	return subkeys, nil
}

// NamespaceClear deletes every key under ns, returning the count removed.
func (c *Client) NamespaceClear(ctx context.Context, ns string) (int, error) {
	return c.Clear(ctx, ns+":")
}

// GetByPrefix enumerates every key with the given prefix and fetches each,
// returning a map of full key (prefix included) to value.
func (c *Client) GetByPrefix(ctx context.Context, prefix string) (map[string]interface{}, error) {
	keys, err := c.Keys(prefix)
	if err != nil {
		return nil, err
	}
	result := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		v, ok, err := c.Get(ctx, k, engine.GetOptions{})
		if err != nil || !ok {
			continue
		}
		result[k] = v
	}
	return result, nil
}
