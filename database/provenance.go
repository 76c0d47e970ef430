package database

import (
	"context"
	"fmt"
)

// ProvenanceStore tracks each synced directory identity independently of
// the user table: uid, canonical name, the directory's own timestamps and
// the wall-clock time of the last local write. Rows are never deleted by
// the incremental sync; only the explicit bulk refresh prunes them.
type ProvenanceStore struct {
	conn Querier
}

func NewProvenanceStore(conn Querier) *ProvenanceStore {
	return &ProvenanceStore{conn: conn}
}

func (p *ProvenanceStore) Upsert(ctx context.Context, cn, uid string, createTs, modifyTs, now int64) error {
	_, err := p.conn.Exec(ctx, `
		INSERT INTO ldapsync_provenance (uid, cn, createtimestamp, modifytimestamp, lastupdated)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cn) DO UPDATE SET
			uid = EXCLUDED.uid,
			createtimestamp = EXCLUDED.createtimestamp,
			modifytimestamp = EXCLUDED.modifytimestamp,
			lastupdated = EXCLUDED.lastupdated
	`, uid, cn, createTs, modifyTs, now)
	if err != nil {
		return fmt.Errorf("provenance upsert for %q failed: %w", cn, err)
	}
	return nil
}

// Touch marks an identity as seen during a directory-wide scan without
// disturbing its recorded uid or directory timestamps.
func (p *ProvenanceStore) Touch(ctx context.Context, cn string, now int64) error {
	_, err := p.conn.Exec(ctx, `
		INSERT INTO ldapsync_provenance (uid, cn, lastupdated)
		VALUES ('', $1, $2)
		ON CONFLICT (cn) DO UPDATE SET
			lastupdated = EXCLUDED.lastupdated
	`, cn, now)
	if err != nil {
		return fmt.Errorf("provenance touch for %q failed: %w", cn, err)
	}
	return nil
}

// Exists reports whether a directory identity was seen for this canonical
// name. Backs the "does this account still exist in the directory" checks
// of the purge flow.
func (p *ProvenanceStore) Exists(ctx context.Context, cn string) (bool, error) {
	var exists bool
	err := p.conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ldapsync_provenance WHERE cn = $1)`, cn).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("provenance exists check for %q failed: %w", cn, err)
	}
	return exists, nil
}

func (p *ProvenanceStore) CountOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	var count int64
	err := p.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM ldapsync_provenance WHERE lastupdated < $1`, cutoff).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("provenance count failed: %w", err)
	}
	return count, nil
}

// DeleteOlderThan removes rows not touched since the cutoff, meaning the
// corresponding directory entry disappeared. Only the bulk refresh calls
// this.
func (p *ProvenanceStore) DeleteOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	tag, err := p.conn.Exec(ctx,
		`DELETE FROM ldapsync_provenance WHERE lastupdated < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("provenance delete failed: %w", err)
	}
	return tag.RowsAffected(), nil
}
