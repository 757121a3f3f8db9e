package util

import (
	"strings"

	"github.com/samber/lo"
)

// SliceToMap turns a list of "key=value" strings into a map. Entries without
// a value keep an empty string.
func SliceToMap(slice []string) map[string]string {
	return lo.SliceToMap(slice, func(s string) (string, string) {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) < 2 {
			return parts[0], ""
		}
		return parts[0], parts[1]
	})
}
