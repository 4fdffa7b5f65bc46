package encoder

import (
	"strings"

	"github.com/ajitpratap0/xdrflow/pkg/errors"
)

// ParseExtraHeader parses "k1=v1,k2=v2". Values may contain '='; keys must
// be unique. An empty string yields an empty map.
func ParseExtraHeader(s string) (map[string]string, error) {
	headers := make(map[string]string)
	if s == "" {
		return headers, nil
	}
	for _, kv := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeConfig, "extra-header entry %q has no '='", kv)
		}
		if _, dup := headers[k]; dup {
			return nil, errors.Newf(errors.ErrorTypeConfig, "extra-header key %q is repeated", k)
		}
		headers[k] = v
	}
	return headers, nil
}

// MergeHeaders overlays input on top of extra. Input headers win on
// conflicts. Neither map is modified.
func MergeHeaders(extra, input map[string]string) map[string]string {
	out := make(map[string]string, len(extra)+len(input))
	for k, v := range extra {
		out[k] = v
	}
	for k, v := range input {
		out[k] = v
	}
	return out
}
