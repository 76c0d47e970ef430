package database

import (
	"strings"
	"testing"

	"github.com/ucsf-education/ldapsync/directory"
)

func TestStagingInsertSQL(t *testing.T) {
	sql := stagingInsertSQL(2)

	if !strings.HasPrefix(sql, "INSERT INTO "+StagingTable) {
		t.Errorf("unexpected prefix: %s", sql)
	}
	if !strings.HasSuffix(sql, "ON CONFLICT (username, mnethostid) DO NOTHING") {
		t.Errorf("missing conflict clause: %s", sql)
	}

	placeholders := strings.Count(sql, "$")
	want := 2 * len(stagingColumns)
	if placeholders != want {
		t.Errorf("got %d placeholders, want %d", placeholders, want)
	}
	if !strings.Contains(sql, "$20)") {
		t.Errorf("last placeholder not $20: %s", sql)
	}
}

func TestStagingArgsOrderAndSpecialCharacters(t *testing.T) {
	people := []directory.Person{{
		UID:             "joreilly",
		Username:        "345678@example.com",
		Firstname:       "Joseph",
		Lastname:        "Doe-O'Reilly",
		Email:           "Joseph.O'Reilly@example.com",
		IDNumber:        "023456787",
		CreateTimestamp: 100,
		ModifyTimestamp: 200,
	}}

	args := stagingArgs(people, 1)
	if len(args) != len(stagingColumns) {
		t.Fatalf("got %d args, want %d", len(args), len(stagingColumns))
	}
	// insert order matches stagingColumns
	if args[0] != "345678@example.com" || args[1] != int64(1) || args[2] != "joreilly" {
		t.Errorf("key columns out of order: %v", args[:3])
	}
	// apostrophes and hyphens ride as parameters, no escaping involved
	if args[5] != "Doe-O'Reilly" || args[6] != "Joseph.O'Reilly@example.com" {
		t.Errorf("special characters corrupted: %v", args[5:7])
	}
	if args[8] != int64(100) || args[9] != int64(200) {
		t.Errorf("timestamps out of order: %v", args[8:])
	}
}

func TestFilterStageableDropsBlankPrincipals(t *testing.T) {
	people := []directory.Person{
		{Username: "", UID: "a"},
		{Username: "00002@example.org", UID: "b"},
		{Username: "   ", UID: "c"},
	}

	staged := filterStageable(people)
	if len(staged) != 1 {
		t.Fatalf("got %d stageable records, want 1", len(staged))
	}
	if staged[0].Username != "00002@example.org" {
		t.Errorf("kept the wrong record: %q", staged[0].Username)
	}
}

func TestCreateStagingSQLColumns(t *testing.T) {
	sql := createStagingSQL()
	for _, column := range stagingColumns {
		if !strings.Contains(sql, column) {
			t.Errorf("create SQL missing column %s", column)
		}
	}
	if !strings.Contains(sql, "PRIMARY KEY (username, mnethostid)") {
		t.Errorf("create SQL missing primary key: %s", sql)
	}
	if !strings.Contains(sql, "TEMPORARY TABLE") {
		t.Errorf("staging table must be temporary: %s", sql)
	}
}
