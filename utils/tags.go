package utils

import "strings"

// SplitTags turns the comma separated tag field of the post form into a
// list. All spaces are removed first, so "a, b c" yields ["a", "bc"]. Empty
// segments are dropped.
func SplitTags(input string) []string {
	tags := []string{}
	for _, tag := range strings.Split(strings.ReplaceAll(input, " ", ""), ",") {
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
