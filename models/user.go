package models

// User is the profile document linked to an auth account.
type User struct {
	ID        string `json:"$id"`
	AccountID string `json:"accountId"`            // Owning auth account
	Name      string `json:"name"`                 // Display name
	Username  string `json:"username,omitempty"`   // Handle shown on profiles
	Email     string `json:"email"`                // Copied from the account at sign-up
	ImageURL  string `json:"imageUrl"`             // Avatar or uploaded profile picture
	ImageID   string `json:"imageId,omitempty"`    // File id when the picture was uploaded
	Bio       string `json:"bio,omitempty"`        // Free-form profile text
	CreatedAt string `json:"$createdAt,omitempty"` // Set by the store
	UpdatedAt string `json:"$updatedAt,omitempty"` // Set by the store
}

// NewUser is the sign-up form.
type NewUser struct {
	Name     string `json:"name" validate:"required,min=2"`
	Username string `json:"username" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// SignIn is the sign-in form.
type SignIn struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// UpdateUser is the profile edit form. File is optional; when present it
// replaces the stored picture.
type UpdateUser struct {
	UserID string  `json:"userId" validate:"required"`
	Name   string  `json:"name" validate:"required,min=2"`
	Bio    string  `json:"bio" validate:"max=2200"`
	File   *Upload `json:"-"`
}

// UsersCollection is the store collection for user profiles
const UsersCollection = "users"
