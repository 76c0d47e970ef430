package directory

import (
	"strings"

	"github.com/go-ldap/ldap/v3"

	"github.com/ucsf-education/ldapsync/config"
)

// Normalizer converts raw directory entries into canonical Person records.
type Normalizer struct {
	userAttribute string
	mappings      []FieldMapping
	extra         []string
	decode        func([]byte) string
}

func NewNormalizer(cfg config.SyncConfiguration, decode func([]byte) string) *Normalizer {
	if decode == nil {
		decode = func(b []byte) string { return string(b) }
	}
	return &Normalizer{
		userAttribute: strings.ToLower(cfg.UserAttribute),
		mappings:      BuildMappings(cfg),
		extra:         cfg.ExtraAttributes,
		decode:        decode,
	}
}

// Normalize produces a Person from one directory entry. The second return
// is false when the entry lacks the principal identifier attribute; such
// entries are routine stale directory records, not errors, and must never
// reach the reconciliation engine.
func (n *Normalizer) Normalize(entry *ldap.Entry) (Person, bool) {
	attrs := n.collapse(entry)

	username := strings.TrimSpace(attrs[n.userAttribute])
	if username == "" {
		return Person{}, false
	}

	person := Person{
		Username:        username,
		UID:             strings.ToLower(attrs["uid"]),
		CreateTimestamp: ParseLdapTimestamp(attrs["createtimestamp"]),
		ModifyTimestamp: ParseLdapTimestamp(attrs["modifytimestamp"]),
	}

	for _, mapping := range n.mappings {
		value := firstNonBlank(attrs, mapping.Candidates)
		switch mapping.Field {
		case "firstname":
			person.Firstname = stripEncodingArtifacts(value)
		case "preferred_firstname":
			person.PreferredFirstname = blankEncodingArtifacts(value)
		case "lastname":
			person.Lastname = stripEncodingArtifacts(value)
		case "email":
			person.Email = firstEmailToken(value)
		case "idnumber":
			person.IDNumber = value
		}
	}

	if len(n.extra) > 0 {
		person.Extra = make(map[string]string, len(n.extra))
		for _, attr := range n.extra {
			person.Extra[attr] = attrs[attr]
		}
	}

	return person, true
}

// collapse lower-cases every attribute name and keeps the first value of
// multi-valued attributes, decoding from the configured charset. Directory
// servers are not case-consistent about attribute names.
func (n *Normalizer) collapse(entry *ldap.Entry) map[string]string {
	attrs := make(map[string]string, len(entry.Attributes))
	for _, attr := range entry.Attributes {
		if len(attr.ByteValues) == 0 {
			continue
		}
		name := strings.ToLower(attr.Name)
		if _, ok := attrs[name]; ok {
			continue
		}
		attrs[name] = n.decode(attr.ByteValues[0])
	}
	return attrs
}

func firstNonBlank(attrs map[string]string, candidates []string) string {
	for _, candidate := range candidates {
		if value := attrs[candidate]; strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// firstEmailToken keeps only the first address of a multi-address value.
func firstEmailToken(value string) string {
	for _, delimiter := range []string{",", ";", " "} {
		value = strings.TrimSpace(strings.SplitN(value, delimiter, 2)[0])
	}
	return value
}

// stripEncodingArtifacts removes the '?' replacement characters some
// directory servers substitute for undecodable bytes. Used for mandatory
// name fields, where a partial value beats an empty one.
func stripEncodingArtifacts(value string) string {
	return strings.ReplaceAll(value, "?", "")
}

// blankEncodingArtifacts discards the whole value when it carries a '?'
// artifact. Used for optional preferred-name fields, which must never
// propagate a corrupted placeholder into a real record.
func blankEncodingArtifacts(value string) string {
	if strings.Contains(value, "?") {
		return ""
	}
	return value
}

// ResolveFirstname applies the preferred-name fallback: the preferred
// variant wins when non-blank, otherwise the plain given name.
func ResolveFirstname(preferred, plain string) string {
	if strings.TrimSpace(preferred) != "" {
		return preferred
	}
	return plain
}
