package lock

import (
	"context"

	"github.com/ValentinKolb/wlock/lib/lockmgr"
)

// Query returns the held and pending locks for the bound name.
//
// Every call fetches a new snapshot from the lock manager, the result may be
// stale by the time it is inspected. Held and Pending keep the order of the
// manager's snapshot and are nil if there are no entries for the name.
func (b *Binding) Query(ctx context.Context) (lockmgr.Snapshot, error) {
	snapshot, err := b.locks.Query(ctx)
	if err != nil {
		return lockmgr.Snapshot{}, err
	}
	return lockmgr.Snapshot{
		Held:    filterByName(snapshot.Held, b.name),
		Pending: filterByName(snapshot.Pending, b.name),
	}, nil
}

// filterByName returns the entries of infos with the given name (nil if there are none)
func filterByName(infos []lockmgr.LockInfo, name string) []lockmgr.LockInfo {
	var filtered []lockmgr.LockInfo
	for _, info := range infos {
		if info.Name == name {
			filtered = append(filtered, info)
		}
	}
	return filtered
}
