package importer

import (
	"context"
	"fmt"
	"time"
)

// UserLister yields every principal identifier currently present in the
// directory, lower-cased.
type UserLister interface {
	FetchUserList() ([]string, error)
}

// ProvenanceRefresher is the slice of the provenance store the bulk
// refresh needs.
type ProvenanceRefresher interface {
	Touch(ctx context.Context, cn string, now int64) error
	CountOlderThan(ctx context.Context, cutoff int64) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff int64) (int64, error)
}

// RefreshProvenance fully rebuilds the provenance table's liveness view
// from a directory-wide scan: every identity seen is stamped with the scan
// time, then rows not touched — identities that disappeared from the
// directory — are deleted. This is a distinct, explicitly invoked
// operation, never part of the scheduled incremental pass.
func RefreshProvenance(ctx context.Context, lister UserLister, store ProvenanceRefresher, start time.Time) ([]string, error) {
	userlist, err := lister.FetchUserList()
	if err != nil {
		return nil, fmt.Errorf("directory listing failed: %w", err)
	}
	fmt.Printf("A total of %d active users found on LDAP.\n", len(userlist))

	now := start.Unix()
	touched := 0
	for _, cn := range userlist {
		if err := store.Touch(ctx, cn, now); err != nil {
			fmt.Printf("- Failed to touch provenance for '%s': %v\n", cn, err)
			continue
		}
		touched++
	}
	fmt.Printf("Touched %d provenance records.\n", touched)

	stale, err := store.CountOlderThan(ctx, now)
	if err != nil {
		return userlist, err
	}
	if stale > 0 {
		deleted, err := store.DeleteOlderThan(ctx, now)
		if err != nil {
			return userlist, err
		}
		fmt.Printf("Removed %d provenance records no longer present in the directory.\n", deleted)
	}
	return userlist, nil
}
