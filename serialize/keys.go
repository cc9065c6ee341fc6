package serialize

import "strconv"

// maxKeyLen is spec.md §4.3.2's property-key length cap: keys longer than
// 1,000 chars are truncated to 997 chars + "...".
const maxKeyLen = 1000
const keyTruncatedPrefixLen = 997

// CanonicalizeKeys truncates overlong keys and suffixes any resulting
// duplicates with "_1", "_2", ... in order of appearance, per spec.md
// §3's Map invariant and §4.3.2's key-truncation rule. The returned slice
// has the same length and order as keys.
func CanonicalizeKeys(keys []string) []string {
	out := make([]string, len(keys))
	seen := make(map[string]int, len(keys))
	for i, k := range keys {
		if len(k) > maxKeyLen {
			k = k[:keyTruncatedPrefixLen] + "..."
		}
		n := seen[k]
		seen[k] = n + 1
		if n == 0 {
			out[i] = k
			continue
		}
		suffixed := k + "_" + strconv.Itoa(n)
		for seen[suffixed] > 0 {
			n++
			suffixed = k + "_" + strconv.Itoa(n)
		}
		seen[suffixed] = 1
		out[i] = suffixed
	}
	return out
}
