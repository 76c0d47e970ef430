package directory_test

import (
	"testing"

	"github.com/ucsf-education/ldapsync/directory"
)

func TestFilterComposition(t *testing.T) {
	tests := []struct {
		name   string
		filter directory.Filter
		want   string
	}{
		{"eq", directory.Eq("uid", "jdoe"), "(uid=jdoe)"},
		{"present", directory.Present("mail"), "(mail=*)"},
		{"ge", directory.Ge("createTimestamp", "20240101000000Z"), "(createTimestamp>=20240101000000Z)"},
		{"not", directory.Not(directory.Eq("uid", "jdoe")), "(!(uid=jdoe))"},
		{
			"and",
			directory.And(directory.Present("uid"), directory.Eq("objectClass", "person")),
			"(&(uid=*)(objectClass=person))",
		},
		{
			"or",
			directory.Or(directory.Eq("uid", "a"), directory.Eq("uid", "b")),
			"(|(uid=a)(uid=b))",
		},
	}

	for _, test := range tests {
		if got := test.filter.String(); got != test.want {
			t.Errorf("%s: got %q, want %q", test.name, got, test.want)
		}
	}
}

func TestPersonFilterFullScan(t *testing.T) {
	got := directory.PersonFilter("edupersonprincipalname", "(objectClass=person)", "")
	want := "(&(edupersonprincipalname=*)(objectClass=person))"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPersonFilterIncremental(t *testing.T) {
	got := directory.PersonFilter("edupersonprincipalname", "(objectClass=person)", "20240101000000Z")
	want := "(&(edupersonprincipalname=*)(objectClass=person)" +
		"(|(createTimestamp>=20240101000000Z)(modifyTimestamp>=20240101000000Z)))"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
