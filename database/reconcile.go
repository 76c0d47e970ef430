package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ucsf-education/ldapsync/config"
	"github.com/ucsf-education/ldapsync/directory"
)

// Reconciler merges one pass's directory records into the user table:
// stage, update matches, insert the rest. Unmatched local accounts are
// left untouched; deletion is a separate administrative flow.
type Reconciler struct {
	session    *Session
	provenance *ProvenanceStore

	authType            string
	mnetHostID          int64
	defaultLang         string
	forceChangePassword bool

	now func() time.Time
}

func NewReconciler(session *Session, cfg config.SyncConfiguration) *Reconciler {
	authType := cfg.AuthType
	if authType == "" {
		authType = config.MoodleAuthAdapter
	}
	return &Reconciler{
		session:             session,
		provenance:          NewProvenanceStore(session.Conn()),
		authType:            authType,
		mnetHostID:          cfg.MnetHostID,
		defaultLang:         cfg.DefaultLang,
		forceChangePassword: cfg.ForceChangePassword,
		now:                 time.Now,
	}
}

type ReconcileStats struct {
	Staged         int
	Updated        int
	Created        int
	UpdateFailures int
	InsertFailures int
}

// Reconcile runs the full staging + merge state machine. Failures while
// creating or populating the staging table abort the pass before any
// account is touched; per-record failures in the update and insert phases
// are logged and counted but do not stop the pass.
func (r *Reconciler) Reconcile(ctx context.Context, people []directory.Person) (ReconcileStats, error) {
	var stats ReconcileStats
	if len(people) == 0 {
		return stats, nil
	}

	conn := r.session.Conn()

	if err := createStagingTable(ctx, conn); err != nil {
		return stats, err
	}
	defer dropStagingTable(ctx, conn)

	staged, err := populateStagingTable(ctx, conn, people, r.mnetHostID)
	if err != nil {
		return stats, err
	}
	stats.Staged = staged

	if err := r.updateExisting(ctx, conn, &stats); err != nil {
		return stats, err
	}
	if err := r.insertNew(ctx, conn, &stats); err != nil {
		return stats, err
	}
	return stats, nil
}

// matchedAccount carries one staging-to-user join row through phase B.
type matchedAccount struct {
	id       int64
	username string
	uid      string

	curFirstname, newFirstname string
	curLastname, newLastname   string
	curEmail, newEmail         string
	curIDNumber, newIDNumber   string

	curTimeCreated, newTimeCreated   int64
	curTimeModified, newTimeModified int64
}

const updateJoin = ` FROM ` + StagingTable + ` s
	JOIN users u ON s.username = u.username AND s.mnethostid = u.mnethostid
	WHERE u.deleted = 0 AND u.auth = $1`

// updateExisting is phase B: field-by-field merge into matched accounts.
func (r *Reconciler) updateExisting(ctx context.Context, conn Querier, stats *ReconcileStats) error {
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*)`+updateJoin, r.authType).Scan(&total); err != nil {
		return fmt.Errorf("counting matched accounts failed: %w", err)
	}

	fmt.Printf("Loading %d existing user records for update ...\n", total)
	batchNum := (total + BatchLimit - 1) / BatchLimit
	fmt.Printf("(Running updates in %d batches of up to %d user records each)\n", batchNum, BatchLimit)

	selectSQL := `SELECT u.id, u.username, s.uid,
		u.firstname, s.firstname, s.preferred_firstname,
		u.lastname, s.lastname,
		u.email, s.email,
		u.idnumber, s.idnumber,
		u.timecreated, s.timecreated,
		u.timemodified, s.timemodified` +
		updateJoin + ` ORDER BY u.id LIMIT $2 OFFSET $3`

	for i := 0; i < batchNum; i++ {
		batchStart := i * BatchLimit
		accounts, err := r.loadMatchedBatch(ctx, conn, selectSQL, batchStart)
		if err != nil {
			return err
		}
		if len(accounts) == 0 {
			break
		}
		fmt.Printf("+ Processing records %d - %d ...\n", batchStart+1, batchStart+len(accounts))
		for _, account := range accounts {
			r.mergeAccount(ctx, conn, account, stats)
		}
	}
	fmt.Println("done.")
	return nil
}

func (r *Reconciler) loadMatchedBatch(ctx context.Context, conn Querier, selectSQL string, offset int) ([]matchedAccount, error) {
	rows, err := conn.Query(ctx, selectSQL, r.authType, BatchLimit, offset)
	if err != nil {
		return nil, fmt.Errorf("loading matched accounts failed: %w", err)
	}
	defer rows.Close()

	var accounts []matchedAccount
	for rows.Next() {
		var a matchedAccount
		var stagedFirst, stagedPreferred string
		if err := rows.Scan(
			&a.id, &a.username, &a.uid,
			&a.curFirstname, &stagedFirst, &stagedPreferred,
			&a.curLastname, &a.newLastname,
			&a.curEmail, &a.newEmail,
			&a.curIDNumber, &a.newIDNumber,
			&a.curTimeCreated, &a.newTimeCreated,
			&a.curTimeModified, &a.newTimeModified,
		); err != nil {
			return nil, fmt.Errorf("scanning matched account failed: %w", err)
		}
		a.newFirstname = directory.ResolveFirstname(stagedPreferred, stagedFirst)
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading matched accounts failed: %w", err)
	}
	return accounts, nil
}

// mergeAccount evaluates every field decision for one matched pair and
// applies the accepted ones, one column at a time. A failing column write
// is logged and does not stop the remaining columns or records.
func (r *Reconciler) mergeAccount(ctx context.Context, conn Querier, a matchedAccount, stats *ReconcileStats) {
	type stringChange struct {
		column   string
		current  string
		incoming string
	}
	stringChanges := []stringChange{
		{"username", a.username, a.username},
		{"firstname", a.curFirstname, a.newFirstname},
		{"lastname", a.curLastname, a.newLastname},
		{"email", a.curEmail, a.newEmail},
		{"idnumber", a.curIDNumber, a.newIDNumber},
	}

	changed := false
	for _, ch := range stringChanges {
		switch DecideStringField(ch.column, ch.current, ch.incoming) {
		case ActionSkip:
			continue
		case ActionSkipRow:
			return
		}
		if r.setField(ctx, conn, a, ch.column, ch.incoming, stats) {
			changed = true
		}
	}

	timestampsTouched := false
	type tsChange struct {
		column   string
		current  int64
		incoming int64
	}
	for _, ch := range []tsChange{
		{"timecreated", a.curTimeCreated, a.newTimeCreated},
		{"timemodified", a.curTimeModified, a.newTimeModified},
	} {
		if DecideTimestampField(ch.column, ch.current, ch.incoming) != ActionApply {
			continue
		}
		if r.setField(ctx, conn, a, ch.column, ch.incoming, stats) {
			changed = true
			timestampsTouched = true
		}
	}

	if changed {
		stats.Updated++
	}
	if timestampsTouched {
		now := r.now().Unix()
		if err := r.provenance.Upsert(ctx, a.username, a.uid, a.newTimeCreated, a.newTimeModified, now); err != nil {
			fmt.Printf("- Failed to record provenance for user '%s': %v\n", a.username, err)
		}
	}
}

// setField writes one column of one account. Reports success.
func (r *Reconciler) setField(ctx context.Context, conn Querier, a matchedAccount, column string, value any, stats *ReconcileStats) bool {
	fmt.Printf("- Updating user '%s', attribute '%s' ... ", a.username, column)
	_, err := conn.Exec(ctx, fmt.Sprintf(`UPDATE users SET %s = $1 WHERE id = $2`, column), value, a.id)
	if err != nil {
		fmt.Printf("FAIL: %v\n", err)
		stats.UpdateFailures++
		return false
	}
	fmt.Println("OK")
	return true
}

const insertJoin = ` FROM ` + StagingTable + ` s
	LEFT JOIN users u ON s.username = u.username AND s.mnethostid = u.mnethostid
	WHERE u.id IS NULL`

type newAccount struct {
	uid                                  string
	username                             string
	firstname, lastname, email, idnumber string
	timecreated, timemodified            int64
}

// insertNew is phase C: create accounts for staged rows with no local
// match. Each round re-queries at offset zero with a stable ordering;
// successfully inserted rows leave the anti-join, so every candidate is
// reached exactly once. The round count is bounded by the original batch
// total so rows that keep failing cannot loop forever.
func (r *Reconciler) insertNew(ctx context.Context, conn Querier, stats *ReconcileStats) error {
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*)`+insertJoin).Scan(&total); err != nil {
		return fmt.Errorf("counting new accounts failed: %w", err)
	}

	fmt.Printf("Loading %d new user records for insertion ...\n", total)
	batchNum := (total + BatchLimit - 1) / BatchLimit
	fmt.Printf("(Running insertions in %d batches of up to %d user records each)\n", batchNum, BatchLimit)

	selectSQL := `SELECT s.uid, s.username, s.firstname, s.preferred_firstname,
		s.lastname, s.email, s.idnumber, s.timecreated, s.timemodified` +
		insertJoin + ` ORDER BY s.username LIMIT $1`

	for i := 0; i < batchNum; i++ {
		candidates, err := r.loadNewBatch(ctx, conn, selectSQL)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			break
		}
		fmt.Printf("+ Processing records %d - %d ...\n", i*BatchLimit+1, i*BatchLimit+len(candidates))

		created := 0
		for _, candidate := range candidates {
			if r.createAccount(ctx, conn, candidate, stats) {
				created++
			}
		}
		if created == 0 {
			// every row in this round failed; re-querying would return
			// the same rows
			break
		}
	}
	fmt.Println("done.")
	return nil
}

func (r *Reconciler) loadNewBatch(ctx context.Context, conn Querier, selectSQL string) ([]newAccount, error) {
	rows, err := conn.Query(ctx, selectSQL, BatchLimit)
	if err != nil {
		return nil, fmt.Errorf("loading new accounts failed: %w", err)
	}
	defer rows.Close()

	var candidates []newAccount
	for rows.Next() {
		var c newAccount
		var stagedFirst, stagedPreferred string
		if err := rows.Scan(
			&c.uid, &c.username, &stagedFirst, &stagedPreferred,
			&c.lastname, &c.email, &c.idnumber, &c.timecreated, &c.timemodified,
		); err != nil {
			return nil, fmt.Errorf("scanning new account failed: %w", err)
		}
		c.firstname = directory.ResolveFirstname(stagedPreferred, stagedFirst)
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading new accounts failed: %w", err)
	}
	return candidates, nil
}

// createAccount inserts one account with the create-time defaults:
// confirmed, configured auth type, local host id, forum tracking on and
// the host default language. Reports success; failure is per-record.
func (r *Reconciler) createAccount(ctx context.Context, conn Querier, c newAccount, stats *ReconcileStats) bool {
	now := r.now().Unix()
	timecreated := c.timecreated
	if timecreated == 0 {
		timecreated = now
	}
	timemodified := c.timemodified
	if timemodified == 0 {
		timemodified = now
	}

	var id int64
	err := conn.QueryRow(ctx, `
		INSERT INTO users (auth, confirmed, mnethostid, username, firstname, lastname,
			email, idnumber, lang, trackforums, timecreated, timemodified)
		VALUES ($1, 1, $2, $3, $4, $5, $6, $7, $8, 1, $9, $10)
		RETURNING id
	`, r.authType, r.mnetHostID, c.username, c.firstname, c.lastname,
		c.email, c.idnumber, r.defaultLang, timecreated, timemodified).Scan(&id)
	if err != nil {
		fmt.Printf("- Failed to create user '%s': %v\n", c.username, err)
		stats.InsertFailures++
		return false
	}
	fmt.Printf("- Created user '%s'.\n", c.username)
	stats.Created++

	if r.forceChangePassword {
		_, err = conn.Exec(ctx, `
			INSERT INTO user_preferences (userid, name, value)
			VALUES ($1, 'auth_forcepasswordchange', '1')
			ON CONFLICT (userid, name) DO UPDATE SET value = '1'
		`, id)
		if err != nil {
			fmt.Printf("- Failed to flag password change for user '%s': %v\n", c.username, err)
		}
	}

	if err := r.provenance.Upsert(ctx, c.username, c.uid, c.timecreated, c.timemodified, now); err != nil {
		fmt.Printf("- Failed to record provenance for user '%s': %v\n", c.username, err)
	}
	return true
}
