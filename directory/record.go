package directory

import "github.com/ucsf-education/ldapsync/config"

// Person is the canonical record produced from one directory entry. It is
// consumed by the reconciliation engine within the same pass and never
// persisted in this shape.
type Person struct {
	UID                string
	Username           string // value of the configured principal identifier attribute
	Firstname          string
	PreferredFirstname string
	Lastname           string
	Email              string
	IDNumber           string
	CreateTimestamp    int64 // epoch seconds, 0 when absent
	ModifyTimestamp    int64

	// Extra carries the configured extension attributes, keyed by
	// lower-cased attribute name. Not part of the account merge.
	Extra map[string]string
}

// FieldMapping binds a logical sync field to its candidate directory
// attributes. The first candidate with a non-blank value wins.
type FieldMapping struct {
	Field      string
	Candidates []string
}

// BuildMappings derives the ordered mapping list from configuration.
func BuildMappings(cfg config.SyncConfiguration) []FieldMapping {
	mappings := make([]FieldMapping, 0, len(config.SyncFields))
	for _, field := range config.SyncFields {
		candidates := cfg.FieldMap[field]
		if len(candidates) == 0 {
			continue
		}
		mappings = append(mappings, FieldMapping{Field: field, Candidates: candidates})
	}
	return mappings
}

// WantedAttributes is the attribute list requested from the directory:
// every mapping candidate, the principal identifier, uid, the two
// timestamps and the extension attributes, de-duplicated in order.
func WantedAttributes(cfg config.SyncConfiguration, mappings []FieldMapping) []string {
	seen := make(map[string]bool)
	var attrs []string
	add := func(attr string) {
		if attr == "" || seen[attr] {
			return
		}
		seen[attr] = true
		attrs = append(attrs, attr)
	}

	add(cfg.UserAttribute)
	add("uid")
	for _, mapping := range mappings {
		for _, candidate := range mapping.Candidates {
			add(candidate)
		}
	}
	add("createtimestamp")
	add("modifytimestamp")
	for _, attr := range cfg.ExtraAttributes {
		add(attr)
	}
	return attrs
}
