package controllers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/gorilla/schema"

	"safespace/helpers"
	"safespace/models"
	"safespace/services"
)

const maxFormMemory = services.MaxImageBytes + 1<<20

var formDecoder = newFormDecoder()

func newFormDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

type postForm struct {
	Caption  string `schema:"caption"`
	Location string `schema:"location"`
	Tags     string `schema:"tags"`
}

type profileForm struct {
	Name string `schema:"name"`
	Bio  string `schema:"bio"`
}

// decodeForm fills dst from a multipart or url-encoded body and returns the
// optional "file" part. The returned cleanup must always be called.
func decodeForm(r *http.Request, dst any) (*models.Upload, func(), error) {
	noop := func() {}

	values := map[string][]string{}
	err := r.ParseMultipartForm(maxFormMemory)
	switch {
	case err == nil:
		values = r.MultipartForm.Value
	case errors.Is(err, http.ErrNotMultipart):
		if err := r.ParseForm(); err != nil {
			return nil, noop, fmt.Errorf("%w: %w", helpers.ErrBadBody, err)
		}
		values = r.PostForm
	default:
		return nil, noop, fmt.Errorf("%w: %w", helpers.ErrBadBody, err)
	}

	if err := formDecoder.Decode(dst, values); err != nil {
		return nil, noop, fmt.Errorf("%w: %w", helpers.ErrBadBody, err)
	}

	if r.MultipartForm == nil {
		return nil, noop, nil
	}
	cleanup := func() { _ = r.MultipartForm.RemoveAll() }

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, cleanup, nil
	}
	if err != nil {
		return nil, cleanup, fmt.Errorf("%w: %w", helpers.ErrBadBody, err)
	}
	return uploadFrom(file, header), func() {
		_ = file.Close()
		cleanup()
	}, nil
}

func uploadFrom(file multipart.File, header *multipart.FileHeader) *models.Upload {
	return &models.Upload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	}
}
