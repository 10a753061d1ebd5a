package models

// Post is a single feed entry.
type Post struct {
	ID        string   `json:"$id"`
	Creator   string   `json:"creator"` // User id of the author
	Caption   string   `json:"caption"`
	Tags      []string `json:"tags"`
	ImageURL  string   `json:"imageUrl"`
	ImageID   string   `json:"imageId"`
	Location  string   `json:"location,omitempty"`
	Likes     []string `json:"likes"` // User ids, replaced as a whole on like/unlike
	CreatedAt string   `json:"$createdAt,omitempty"`
	UpdatedAt string   `json:"$updatedAt,omitempty"`
}

// NewPost is the create-post form. Tags arrive as a comma separated string.
type NewPost struct {
	UserID   string  `json:"userId" validate:"required"`
	Caption  string  `json:"caption" validate:"min=5,max=2200"`
	Location string  `json:"location" validate:"min=1,max=1000"`
	Tags     string  `json:"tags"`
	File     *Upload `json:"-" validate:"required"`
}

// UpdatePost is the edit-post form. File is optional; the current image is
// always taken from the stored post.
type UpdatePost struct {
	PostID   string  `json:"postId" validate:"required"`
	Caption  string  `json:"caption" validate:"min=5,max=2200"`
	Location string  `json:"location" validate:"min=1,max=1000"`
	Tags     string  `json:"tags"`
	File     *Upload `json:"-"`
}

// Save is a bookmark linking a user to a post.
type Save struct {
	ID        string `json:"$id"`
	User      string `json:"user"`
	Post      string `json:"post"`
	CreatedAt string `json:"$createdAt,omitempty"`
}

const (
	// PostsCollection is the store collection for posts
	PostsCollection = "posts"
	// SavesCollection is the store collection for bookmarks
	SavesCollection = "saves"
)
