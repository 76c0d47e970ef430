package database

import "strings"

// FieldAction is the decision for one staged-vs-local field pair,
// evaluated before any mutation.
type FieldAction int

const (
	// ActionApply writes the staged value over the local one.
	ActionApply FieldAction = iota
	// ActionSkip leaves the local value alone and moves to the next field.
	ActionSkip
	// ActionSkipRow abandons the remaining fields of this account.
	ActionSkipRow
)

// DecideStringField applies the override rules for string-typed columns:
//   - username and idnumber are write-once, never overwritten;
//   - email is never blanked out by an empty incoming value;
//   - everything else is overwritten when it differs.
func DecideStringField(column, current, incoming string) FieldAction {
	switch column {
	case "username":
		// a staged row with a blank principal must not drive any update
		if strings.TrimSpace(incoming) == "" {
			return ActionSkipRow
		}
		return ActionSkip
	case "idnumber":
		return ActionSkip
	}
	if current == incoming {
		return ActionSkip
	}
	if column == "email" && strings.TrimSpace(incoming) == "" {
		return ActionSkip
	}
	return ActionApply
}

// DecideTimestampField applies the monotonicity rules for the tracked
// timestamp columns:
//   - timecreated fills in when blank and may only move earlier;
//   - timemodified fills forward from blank only.
func DecideTimestampField(column string, current, incoming int64) FieldAction {
	switch column {
	case "timecreated":
		if current == 0 && incoming != 0 {
			return ActionApply
		}
		if incoming != 0 && current > incoming {
			return ActionApply
		}
		return ActionSkip
	case "timemodified":
		if current == 0 && incoming != 0 {
			return ActionApply
		}
		return ActionSkip
	}
	if current != incoming {
		return ActionApply
	}
	return ActionSkip
}
