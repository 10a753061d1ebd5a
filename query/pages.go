package query

import (
	"context"

	"safespace/models"
)

// PostPage is one explore page. NextCursor is the last id of the unfiltered
// page, so hiding the viewer's posts never stalls the walk. A page with no
// documents has no cursor and ends pagination.
type PostPage struct {
	models.DocumentList[models.Post]
	NextCursor string `json:"nextCursor"`
}

// HasNextPage reports whether another page may exist.
func (p PostPage) HasNextPage() bool {
	return p.NextCursor != ""
}

// InfinitePostsPage fetches the explore page after cursor without the
// viewer's own posts. Pages are cached unfiltered under getInfinitePosts.
func (a *API) InfinitePostsPage(ctx context.Context, viewerID, cursor string) (PostPage, error) {
	list, err := Fetch(ctx, a.client, NewKey(OpGetInfinitePosts, cursor), func(ctx context.Context) (models.DocumentList[models.Post], error) {
		return a.svc.Posts.GetInfinitePosts(ctx, cursor)
	})
	if err != nil {
		return PostPage{}, err
	}

	page := PostPage{DocumentList: withoutCreator(list, viewerID)}
	if n := len(list.Documents); n > 0 {
		page.NextCursor = list.Documents[n-1].ID
	}
	return page, nil
}
