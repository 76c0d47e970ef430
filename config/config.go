package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// MoodleAuthAdapter is the auth method stamped on accounts when AUTH_TYPE is unset.
const MoodleAuthAdapter = "shibboleth"

// SyncFields are the logical user columns the sync recognizes, in staging order.
var SyncFields = []string{"firstname", "preferred_firstname", "lastname", "email", "idnumber"}

type SyncConfiguration struct {
	HostURL       string
	LDAPVersion   int
	BindDN        string
	BindPassword  string
	StartTLS      bool
	Contexts      []string
	SearchSubtree bool
	DerefAliases  int
	PageSize      uint32
	ObjectClass   string
	UserAttribute string
	Encoding      string

	// FieldMap maps a logical sync field to its candidate directory
	// attributes. The first candidate returning a non-blank value wins.
	FieldMap map[string][]string

	// ExtraAttributes are additional directory attributes fetched and
	// carried on the record without taking part in the account merge.
	ExtraAttributes []string

	AuthType            string
	ForceChangePassword bool
	DefaultLang         string
	MnetHostID          int64

	DatabaseDSN string
	CacheDir    string
}

func LoadEnvConfig(configName string) SyncConfiguration {
	err := godotenv.Load(configName)
	if err != nil {
		log.Fatal("Error loading .env file")
	}

	cfg := SyncConfiguration{
		HostURL:       os.Getenv("LDAP_HOST_URL"),
		LDAPVersion:   envInt("LDAP_VERSION", 3),
		BindDN:        os.Getenv("LDAP_BIND_DN"),
		BindPassword:  os.Getenv("LDAP_BIND_PW"),
		StartTLS:      envBool("LDAP_START_TLS", false),
		Contexts:      SplitContexts(os.Getenv("LDAP_CONTEXTS")),
		SearchSubtree: envBool("LDAP_SEARCH_SUB", false),
		DerefAliases:  envInt("LDAP_OPT_DEREF", 0),
		PageSize:      uint32(envInt("LDAP_PAGESIZE", 250)),
		ObjectClass:   envDefault("LDAP_OBJECTCLASS", "(objectClass=person)"),
		UserAttribute: strings.ToLower(envDefault("LDAP_USER_ATTRIBUTE", "eduPersonPrincipalName")),
		Encoding:      envDefault("LDAP_ENCODING", "utf-8"),

		AuthType:            envDefault("AUTH_TYPE", MoodleAuthAdapter),
		ForceChangePassword: envBool("FORCE_CHANGE_PASSWORD", false),
		DefaultLang:         envDefault("DEFAULT_LANG", "en"),
		MnetHostID:          int64(envInt("MNET_LOCALHOST_ID", 1)),

		DatabaseDSN: os.Getenv("DATABASE_DSN"),
		CacheDir:    envDefault("CACHE_DIR", os.TempDir()),
	}

	cfg.FieldMap = map[string][]string{
		"firstname":           SplitAttributeList(envDefault("FIELD_MAP_FIRSTNAME", "givenName")),
		"preferred_firstname": SplitAttributeList(envDefault("FIELD_MAP_PREFERRED_FIRSTNAME", "ucsfEduPreferredGivenName")),
		"lastname":            SplitAttributeList(envDefault("FIELD_MAP_LASTNAME", "sn")),
		"email":               SplitAttributeList(envDefault("FIELD_MAP_EMAIL", "mail")),
		"idnumber":            SplitAttributeList(envDefault("FIELD_MAP_IDNUMBER", "ucsfEduIDNumber")),
	}
	cfg.ExtraAttributes = SplitAttributeList(os.Getenv("LDAP_EXTRA_ATTRIBUTES"))

	if cfg.HostURL == "" {
		log.Fatal("LDAP_HOST_URL is not set")
	}
	if len(cfg.Contexts) == 0 {
		log.Fatal("LDAP_CONTEXTS is not set")
	}

	return cfg
}

// SplitContexts splits the semicolon-separated base context list.
func SplitContexts(raw string) []string {
	var contexts []string
	for _, part := range strings.Split(raw, ";") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			contexts = append(contexts, trimmed)
		}
	}
	return contexts
}

// SplitAttributeList splits a comma-separated candidate attribute list,
// lower-casing each entry. Iteration order defines fallback priority.
func SplitAttributeList(raw string) []string {
	var attrs []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			attrs = append(attrs, strings.ToLower(trimmed))
		}
	}
	return attrs
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("failed to parse %s as integer: %v", key, err)
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Fatalf("failed to parse %s as boolean: %v", key, err)
	}
	return b
}
