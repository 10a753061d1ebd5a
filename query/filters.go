package query

import "safespace/models"

// Discover filters hide the viewer's own documents from global listings.
// They run after the cache, and Total keeps the store's count, so the
// rendered list can be shorter than Total says.

func withoutCreator(list models.DocumentList[models.Post], viewerID string) models.DocumentList[models.Post] {
	if viewerID == "" {
		return list
	}
	out := models.DocumentList[models.Post]{
		Documents: make([]models.Post, 0, len(list.Documents)),
		Total:     list.Total,
	}
	for _, post := range list.Documents {
		if post.Creator != viewerID {
			out.Documents = append(out.Documents, post)
		}
	}
	return out
}

func withoutUser(list models.DocumentList[models.User], viewerID string) models.DocumentList[models.User] {
	if viewerID == "" {
		return list
	}
	out := models.DocumentList[models.User]{
		Documents: make([]models.User, 0, len(list.Documents)),
		Total:     list.Total,
	}
	for _, user := range list.Documents {
		if user.ID != viewerID {
			out.Documents = append(out.Documents, user)
		}
	}
	return out
}
