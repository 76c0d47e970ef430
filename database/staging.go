package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/ucsf-education/ldapsync/directory"
)

// StagingTable is the transient holding area for one pass's normalized
// directory records.
const StagingTable = "ldapsync_extuser"

// BatchLimit caps the number of rows touched by a single SQL statement.
const BatchLimit = 1000

// stagingColumns is the staged column set in insert order. The principal
// identifier and host discriminator form the key; the two timestamp
// columns carry the directory stamps as epoch seconds.
var stagingColumns = []string{
	"username", "mnethostid", "uid",
	"firstname", "preferred_firstname", "lastname", "email", "idnumber",
	"timecreated", "timemodified",
}

func createStagingSQL() string {
	return fmt.Sprintf(`CREATE TEMPORARY TABLE %s
(
  username VARCHAR(100),
  mnethostid BIGINT,
  uid VARCHAR(100),
  firstname VARCHAR(100),
  preferred_firstname VARCHAR(100),
  lastname VARCHAR(100),
  email VARCHAR(100),
  idnumber VARCHAR(255),
  timecreated BIGINT,
  timemodified BIGINT,
  PRIMARY KEY (username, mnethostid)
)`, StagingTable)
}

// stagingInsertSQL builds a multi-row parameterized insert for rowCount
// rows. Duplicate (username, mnethostid) pairs are silently ignored, so
// the first-seen record for an identifier wins within a pass.
func stagingInsertSQL(rowCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", StagingTable, strings.Join(stagingColumns, ", "))
	argn := 1
	for row := 0; row < rowCount; row++ {
		if row > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for col := range stagingColumns {
			if col > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", argn)
			argn++
		}
		b.WriteByte(')')
	}
	b.WriteString(" ON CONFLICT (username, mnethostid) DO NOTHING")
	return b.String()
}

func stagingArgs(people []directory.Person, mnetHostID int64) []any {
	args := make([]any, 0, len(people)*len(stagingColumns))
	for _, p := range people {
		args = append(args,
			p.Username, mnetHostID, p.UID,
			p.Firstname, p.PreferredFirstname, p.Lastname, p.Email, p.IDNumber,
			p.CreateTimestamp, p.ModifyTimestamp,
		)
	}
	return args
}

// filterStageable drops records lacking the principal identifier. The
// normalizer already excludes these; this is defense in depth for records
// staged through other paths.
func filterStageable(people []directory.Person) []directory.Person {
	staged := make([]directory.Person, 0, len(people))
	for _, p := range people {
		if strings.TrimSpace(p.Username) == "" {
			continue
		}
		staged = append(staged, p)
	}
	return staged
}

// createStagingTable drops any leftover staging table and recreates it.
// Failure here is fatal for the pass; no local account has been touched yet.
func createStagingTable(ctx context.Context, conn Querier) error {
	fmt.Print("Delete temporary table if exists ... ")
	if _, err := conn.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", StagingTable)); err != nil {
		return fmt.Errorf("couldn't drop staging table: %w", err)
	}
	fmt.Println("done.")

	fmt.Print("Creating staging table ... ")
	if _, err := conn.Exec(ctx, createStagingSQL()); err != nil {
		return fmt.Errorf("couldn't create staging table: %w", err)
	}
	fmt.Println("done.")
	return nil
}

// populateStagingTable inserts the pass's records in fixed-size batches.
// Any database failure while populating is fatal and aborts the pass.
func populateStagingTable(ctx context.Context, conn Querier, people []directory.Person, mnetHostID int64) (int, error) {
	staged := filterStageable(people)

	fmt.Print("Populating staging table ... ")
	for start := 0; start < len(staged); start += BatchLimit {
		end := start + BatchLimit
		if end > len(staged) {
			end = len(staged)
		}
		batch := staged[start:end]
		sql := stagingInsertSQL(len(batch))
		if _, err := conn.Exec(ctx, sql, stagingArgs(batch, mnetHostID)...); err != nil {
			return 0, fmt.Errorf("couldn't populate staging table: %w", err)
		}
	}
	fmt.Println("done.")
	return len(staged), nil
}

func dropStagingTable(ctx context.Context, conn Querier) {
	if _, err := conn.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", StagingTable)); err != nil {
		fmt.Printf("Fail to drop staging table: %v\n", err)
	}
}
