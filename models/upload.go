package models

import "io"

// Upload is a file handed over by the view layer together with a form.
type Upload struct {
	Name        string
	ContentType string
	Body        io.Reader
}
