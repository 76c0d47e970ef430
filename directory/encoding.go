package directory

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
)

// NewValueDecoder returns a function converting raw attribute bytes from
// the configured directory encoding to UTF-8. Values that fail to decode
// are passed through unmodified rather than dropped.
func NewValueDecoder(encodingName string) (func([]byte) string, error) {
	name := strings.ToLower(strings.TrimSpace(encodingName))
	if name == "" || name == "utf-8" || name == "utf8" {
		return func(b []byte) string { return string(b) }, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("unknown directory encoding %q", encodingName)
	}

	decoder := enc.NewDecoder()
	return func(b []byte) string {
		decoded, err := decoder.Bytes(b)
		if err != nil {
			return string(b)
		}
		return string(decoded)
	}, nil
}
