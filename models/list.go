package models

// DocumentList is a page of documents plus the store's total match count.
// Total may exceed len(Documents) because of limits or post-fetch filters.
type DocumentList[T any] struct {
	Documents []T `json:"documents"`
	Total     int `json:"total"`
}
