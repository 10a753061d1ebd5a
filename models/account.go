package models

// Account is an auth identity.
type Account struct {
	ID           string `json:"$id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	PasswordHash string `json:"passwordHash,omitempty"`
	CreatedAt    string `json:"$createdAt,omitempty"`
}

// Session is a signed-in account. Its id is the bearer token.
type Session struct {
	ID        string `json:"$id"`
	AccountID string `json:"accountId"`
	CreatedAt string `json:"$createdAt,omitempty"`
}

const (
	// AccountsCollection holds auth identities
	AccountsCollection = "accounts"
	// SessionsCollection holds active sessions
	SessionsCollection = "sessions"
)
