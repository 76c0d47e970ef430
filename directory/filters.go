package directory

import "strings"

// Composable LDAP search filter fragments.
type Filter interface {
	String() string
}

type rawFilter string

func (f rawFilter) String() string {
	return string(f)
}

// Raw wraps an already-formatted filter fragment, e.g. the configured
// objectclass filter.
func Raw(fragment string) Filter {
	return rawFilter(fragment)
}

type andFilter struct {
	parts []Filter
}

func And(filters ...Filter) Filter {
	return andFilter{parts: filters}
}

func (f andFilter) String() string {
	var parts []string
	for _, p := range f.parts {
		parts = append(parts, p.String())
	}
	return "(&" + strings.Join(parts, "") + ")"
}

type orFilter struct {
	parts []Filter
}

func Or(filters ...Filter) Filter {
	return orFilter{parts: filters}
}

func (f orFilter) String() string {
	var parts []string
	for _, p := range f.parts {
		parts = append(parts, p.String())
	}
	return "(|" + strings.Join(parts, "") + ")"
}

type notFilter struct {
	part Filter
}

func Not(f Filter) Filter {
	return notFilter{part: f}
}

func (f notFilter) String() string {
	return "(!" + f.part.String() + ")"
}

func Eq(attr, value string) Filter {
	return rawFilter("(" + attr + "=" + value + ")")
}

func Ge(attr, value string) Filter {
	return rawFilter("(" + attr + ">=" + value + ")")
}

func Present(attr string) Filter {
	return rawFilter("(" + attr + "=*)")
}

// PersonFilter builds the search filter for one sync pass. With a watermark
// it restricts the scan to entries created or modified at or after it.
func PersonFilter(userAttribute, objectClass, sinceLdapTime string) string {
	if sinceLdapTime == "" {
		return And(Present(userAttribute), Raw(objectClass)).String()
	}
	return And(
		Present(userAttribute),
		Raw(objectClass),
		Or(
			Ge("createTimestamp", sinceLdapTime),
			Ge("modifyTimestamp", sinceLdapTime),
		),
	).String()
}
