package queue

import (
	"context"
	"strings"
)

// Pending returns the names of the items waiting in the queue, oldest first.
// An item may be reserved by a consumer between the listing and any follow-up.
func Pending(ctx context.Context, d dependencies, cfg Config) ([]string, error) {
	if err := cfg.Validate(ctx); err != nil {
		return nil, err
	}
	ns := NewNamespace(cfg.Root)
	names, _, err := d.CoordStore().Children(ctx, ns.items)
	if err != nil {
		return nil, err
	}
	items := make([]string, 0, len(names))
	for _, name := range names {
		if strings.HasPrefix(name, itemNamePrefix) {
			items = append(items, name)
		}
	}
	return items, nil
}
