package database_test

import (
	"testing"

	"github.com/ucsf-education/ldapsync/database"
)

func TestDecideStringField(t *testing.T) {
	tests := []struct {
		name     string
		column   string
		current  string
		incoming string
		want     database.FieldAction
	}{
		// username and idnumber are write-once
		{"username never updated", "username", "123456@example.com", "999999@example.com", database.ActionSkip},
		{"username equal", "username", "123456@example.com", "123456@example.com", database.ActionSkip},
		{"blank username stops the row", "username", "123456@example.com", "", database.ActionSkipRow},
		{"idnumber never updated", "idnumber", "011234569", "999999999", database.ActionSkip},
		{"idnumber never blanked", "idnumber", "011234569", "", database.ActionSkip},

		// email is never blanked out
		{"blank email skipped", "email", "jane@example.com", "", database.ActionSkip},
		{"whitespace email skipped", "email", "jane@example.com", "   ", database.ActionSkip},
		{"changed email applied", "email", "old@example.com", "new@example.com", database.ActionApply},
		{"equal email skipped", "email", "jane@example.com", "jane@example.com", database.ActionSkip},
		{"email filled from blank", "email", "", "jane@example.com", database.ActionApply},

		// everything else overwrites on difference
		{"changed firstname applied", "firstname", "Jim", "Jimmy", database.ActionApply},
		{"equal firstname skipped", "firstname", "Jane", "Jane", database.ActionSkip},
		{"lastname blanking applied", "lastname", "Doe", "", database.ActionApply},
	}

	for _, test := range tests {
		got := database.DecideStringField(test.column, test.current, test.incoming)
		if got != test.want {
			t.Errorf("%s: DecideStringField(%q, %q, %q) = %v, want %v",
				test.name, test.column, test.current, test.incoming, got, test.want)
		}
	}
}

func TestDecideTimestampField(t *testing.T) {
	tests := []struct {
		name     string
		column   string
		current  int64
		incoming int64
		want     database.FieldAction
	}{
		// timecreated fills in when blank and only ever moves earlier
		{"timecreated fills blank", "timecreated", 0, 100, database.ActionApply},
		{"timecreated moves earlier", "timecreated", 200, 100, database.ActionApply},
		{"timecreated never moves forward", "timecreated", 100, 200, database.ActionSkip},
		{"timecreated ignores zero incoming", "timecreated", 100, 0, database.ActionSkip},
		{"timecreated both blank", "timecreated", 0, 0, database.ActionSkip},

		// timemodified fills forward from blank only
		{"timemodified fills blank", "timemodified", 0, 50, database.ActionApply},
		{"timemodified never overwrites", "timemodified", 50, 100, database.ActionSkip},
		{"timemodified ignores zero incoming", "timemodified", 0, 0, database.ActionSkip},

		// untracked numeric columns overwrite on difference
		{"other column applied", "lastlogin", 10, 20, database.ActionApply},
		{"other column equal", "lastlogin", 10, 10, database.ActionSkip},
	}

	for _, test := range tests {
		got := database.DecideTimestampField(test.column, test.current, test.incoming)
		if got != test.want {
			t.Errorf("%s: DecideTimestampField(%q, %d, %d) = %v, want %v",
				test.name, test.column, test.current, test.incoming, got, test.want)
		}
	}
}
