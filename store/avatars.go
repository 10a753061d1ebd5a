package store

import (
	"net/url"
	"strings"
)

// InitialsAvatars renders avatar URLs from a name using an initials image
// service.
type InitialsAvatars struct {
	BaseURL string
}

// Initials returns the avatar URL for name.
func (a InitialsAvatars) Initials(name string) string {
	q := url.Values{}
	q.Set("name", strings.TrimSpace(name))

	sep := "?"
	if strings.Contains(a.BaseURL, "?") {
		sep = "&"
	}
	return a.BaseURL + sep + q.Encode()
}
