package filterbank

import "strings"

// reservedName collides with a dispatch keyword in method position;
// reservedAlias is the member-safe spelling it is rewritten to.
const (
	reservedName  = "default"
	reservedAlias = "_default"
)

// Normalize returns the canonical lookup key for a filter name: the name
// lower-cased with every underscore removed. Two spellings address the same
// registration exactly when their keys are equal, so "My_Filter",
// "my_filter" and "MYFILTER" all land on one filter. Any string is a valid
// input; normalizing is idempotent.
func Normalize(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "_", "")
}

// aliasReserved rewrites an exact match on the reserved filter name to its
// member-safe alias. Invoke applies it before normalization, so the raw
// spelling offered to method dispatch is always usable as a member name,
// while the canonical key is unaffected: normalization strips the leading
// underscore straight back out.
func aliasReserved(name string) string {
	if name == reservedName {
		return reservedAlias
	}
	return name
}
