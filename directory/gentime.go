package directory

import "time"

// LDAP generalized-time layout used by createTimestamp/modifyTimestamp.
const ldapTimeLayout = "20060102150405Z0700"

// ParseLdapTimestamp converts a generalized-time string to epoch seconds.
// Missing or unparseable values normalize to 0, never an error; stale
// directory entries routinely carry garbage here.
func ParseLdapTimestamp(value string) int64 {
	if value == "" {
		return 0
	}
	for _, layout := range []string{ldapTimeLayout, "20060102150405.0Z0700", "200601021504Z0700"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Unix()
		}
	}
	return 0
}

// FormatLdapTimestamp converts epoch seconds to the generalized-time form
// used in createTimestamp/modifyTimestamp range filters.
func FormatLdapTimestamp(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("20060102150405Z")
}
