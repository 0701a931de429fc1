package mail

import "regexp"

// addressPattern is a deliberately loose syntactic check: local part, "@",
// domain containing at least one dot, no embedded whitespace. Full RFC 5322
// parsing rejects addresses Graph happily accepts, so we stay permissive and
// let the provider have the final word.
var addressPattern = regexp.MustCompile(`^[\w.-]+@[\w.-]+\.\w{2,}$`)

// AddressValidation records the verdict for a single address.
type AddressValidation struct {
	Address string `json:"address"`
	Valid   bool   `json:"valid"`
}

// ValidAddress reports whether addr passes the syntactic pattern.
func ValidAddress(addr string) bool {
	return addressPattern.MatchString(addr)
}

// ValidateAddresses checks every entry of list, preserving order. The result
// always has one element per input entry; validation never removes or
// reorders anything.
func ValidateAddresses(list []string) []AddressValidation {
	out := make([]AddressValidation, len(list))
	for i, addr := range list {
		out[i] = AddressValidation{Address: addr, Valid: ValidAddress(addr)}
	}
	return out
}

// InvalidAddresses returns the entries of list that fail validation, in input
// order.
func InvalidAddresses(list []string) []string {
	var invalid []string
	for _, v := range ValidateAddresses(list) {
		if !v.Valid {
			invalid = append(invalid, v.Address)
		}
	}
	return invalid
}
