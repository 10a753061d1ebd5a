package services

import (
	"context"
	"errors"

	"github.com/sourcegraph/conc/pool"

	"safespace/models"
	"safespace/store"
	"safespace/utils"
)

// reader performs store reads, retrying transient failures.
type reader struct {
	docs  store.Documents
	retry utils.RetryOptions
}

func transient(err error) bool {
	return errors.Is(err, store.ErrUnavailable)
}

func getDocument[T any](ctx context.Context, r reader, collection, id string) (T, error) {
	var zero T
	doc, err := utils.WithRetry(ctx, func() (store.Document, error) {
		return r.docs.Get(ctx, collection, id)
	}, transient, r.retry)
	if err != nil {
		return zero, classify(err)
	}

	var out T
	if err := store.Decode(doc, &out); err != nil {
		return zero, err
	}
	return out, nil
}

func listDocuments[T any](ctx context.Context, r reader, collection string, queries ...store.Query) (models.DocumentList[T], error) {
	list, err := utils.WithRetry(ctx, func() (store.DocumentList, error) {
		return r.docs.List(ctx, collection, queries...)
	}, transient, r.retry)
	if err != nil {
		return models.DocumentList[T]{}, classify(err)
	}
	return store.DecodeList[T](list)
}

// listAll pages through every match using the id cursor.
func listAll[T any](ctx context.Context, r reader, collection string, queries ...store.Query) (models.DocumentList[T], error) {
	const pageSize = 100

	var (
		result models.DocumentList[T]
		cursor string
	)
	for {
		page := append([]store.Query{}, queries...)
		page = append(page, store.Limit(pageSize))
		if cursor != "" {
			page = append(page, store.CursorAfter(cursor))
		}

		list, err := utils.WithRetry(ctx, func() (store.DocumentList, error) {
			return r.docs.List(ctx, collection, page...)
		}, transient, r.retry)
		if err != nil {
			return models.DocumentList[T]{}, classify(err)
		}

		decoded, err := store.DecodeList[T](list)
		if err != nil {
			return models.DocumentList[T]{}, err
		}
		result.Documents = append(result.Documents, decoded.Documents...)
		result.Total = list.Total

		if len(list.Documents) < pageSize {
			return result, nil
		}
		cursor = list.Documents[len(list.Documents)-1].ID()
	}
}

func decodeDocument[T any](doc store.Document) (T, error) {
	var out T
	err := store.Decode(doc, &out)
	return out, err
}

// gather runs fn for every index in [0, n) concurrently, at most limit at a
// time. The first error cancels the rest and fails the whole call.
func gather(ctx context.Context, limit, n int, fn func(ctx context.Context, i int) error) error {
	p := pool.New()
	if limit > 0 {
		p = p.WithMaxGoroutines(limit)
	}
	cp := p.WithContext(ctx).WithCancelOnError().WithFirstError()
	for i := range n {
		cp.Go(func(ctx context.Context) error {
			return fn(ctx, i)
		})
	}
	return cp.Wait()
}
