package directory

import (
	"crypto/tls"
	"fmt"
	"log"
	"strings"

	"github.com/go-ldap/ldap/v3"

	"github.com/ucsf-education/ldapsync/config"
)

// Instance holds one directory connection for the duration of a sync pass.
type Instance struct {
	HostURL       string
	Contexts      []string
	SearchSubtree bool
	DerefAliases  int
	PageSize      uint32
	UserAttribute string
	ObjectClass   string

	normalizer     *Normalizer
	wantedAttrs    []string
	ldapConnection *ldap.Conn
}

func NewInstance(cfg config.SyncConfiguration) (*Instance, error) {
	decode, err := NewValueDecoder(cfg.Encoding)
	if err != nil {
		return nil, err
	}
	return &Instance{
		HostURL:       cfg.HostURL,
		Contexts:      cfg.Contexts,
		SearchSubtree: cfg.SearchSubtree,
		DerefAliases:  cfg.DerefAliases,
		PageSize:      cfg.PageSize,
		UserAttribute: cfg.UserAttribute,
		ObjectClass:   cfg.ObjectClass,
		normalizer:    NewNormalizer(cfg, decode),
		wantedAttrs:   WantedAttributes(cfg, BuildMappings(cfg)),
	}, nil
}

// Connect dials and binds the directory connection. A failure here is
// fatal for the whole sync pass.
func (inst *Instance) Connect(bindDN, bindPassword string, startTLS bool) error {
	conn, err := ldap.DialURL(inst.HostURL)
	if err != nil {
		return fmt.Errorf("failed to connect to LDAP server %s: %w", inst.HostURL, err)
	}

	if startTLS {
		if err := conn.StartTLS(&tls.Config{}); err != nil {
			conn.Close()
			return fmt.Errorf("StartTLS failed: %w", err)
		}
	}

	if bindDN != "" {
		err = conn.Bind(bindDN, bindPassword)
	} else {
		err = conn.UnauthenticatedBind("")
	}
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to bind to LDAP server: %w", err)
	}

	inst.ldapConnection = conn
	return nil
}

// Close force-closes the directory connection once paging completes.
func (inst *Instance) Close() {
	if inst.ldapConnection != nil {
		inst.ldapConnection.Close()
		inst.ldapConnection = nil
	}
}

func (inst *Instance) scope() int {
	if inst.SearchSubtree {
		return ldap.ScopeWholeSubtree
	}
	return ldap.ScopeSingleLevel
}

// FetchUpdates runs the paged person search across every base context and
// returns normalized records. An empty sinceLdapTime means a full scan.
// Records lacking the principal identifier attribute are excluded.
func (inst *Instance) FetchUpdates(sinceLdapTime string) ([]Person, error) {
	if inst.ldapConnection == nil {
		return nil, fmt.Errorf("directory connection is not open")
	}

	filter := PersonFilter(inst.UserAttribute, inst.ObjectClass, sinceLdapTime)
	if sinceLdapTime == "" {
		fmt.Print("Start prowling LDAP for all records... ")
	} else {
		fmt.Printf("Start prowling LDAP for records added and/or updated since '%s' ... ", sinceLdapTime)
	}

	var people []Person
	skipped := 0
	err := inst.pagedSearch(filter, inst.wantedAttrs, func(entry *ldap.Entry) {
		person, ok := inst.normalizer.Normalize(entry)
		if !ok {
			skipped++
			return
		}
		people = append(people, person)
	})
	if err != nil {
		return nil, err
	}

	fmt.Printf("found %d updated/added records.\n", len(people))
	if skipped > 0 {
		fmt.Printf("(skipped %d records missing the %s attribute)\n", skipped, inst.UserAttribute)
	}
	return people, nil
}

// FetchUserList runs a full directory scan returning only the principal
// identifier of every matching entry, lower-cased. Used by the provenance
// bulk refresh and the prefetch cache, not by the incremental sync.
func (inst *Instance) FetchUserList() ([]string, error) {
	if inst.ldapConnection == nil {
		return nil, fmt.Errorf("directory connection is not open")
	}

	filter := PersonFilter(inst.UserAttribute, inst.ObjectClass, "")
	var userlist []string
	err := inst.pagedSearch(filter, []string{inst.UserAttribute}, func(entry *ldap.Entry) {
		for _, attr := range entry.Attributes {
			if len(attr.Values) > 0 {
				userlist = append(userlist, strings.ToLower(attr.Values[0]))
				return
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return userlist, nil
}

// pagedSearch drives the simple paged-results control across every base
// context, invoking fn per entry. A page whose paging control cannot be
// located terminates pagination for that context with partial results
// rather than looping forever.
func (inst *Instance) pagedSearch(filter string, attrs []string, fn func(*ldap.Entry)) error {
	for _, context := range inst.Contexts {
		pageControl := ldap.NewControlPaging(inst.PageSize)

		request := ldap.NewSearchRequest(
			context,
			inst.scope(),
			inst.DerefAliases,
			0, 0, false,
			filter,
			attrs,
			[]ldap.Control{pageControl},
		)

		for {
			searchResults, err := inst.ldapConnection.Search(request)
			if err != nil {
				log.Printf("LDAP search failed under %s, stopping pagination with partial results: %v", context, err)
				break
			}

			for _, entry := range searchResults.Entries {
				fn(entry)
			}

			control := ldap.FindControl(searchResults.Controls, ldap.ControlTypePaging)
			if control == nil {
				break
			}
			paging, ok := control.(*ldap.ControlPaging)
			if !ok || len(paging.Cookie) == 0 {
				break
			}
			pageControl.SetCookie(paging.Cookie)
		}
	}
	return nil
}
