package mail

import "strings"

// SplitAddressList turns a free-form recipient string into an ordered list of
// addresses. Entries may be separated by commas or semicolons; surrounding
// whitespace is trimmed and empty entries are dropped. Duplicates are kept:
// whether repeated recipients are acceptable is the provider's call, not ours.
func SplitAddressList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
