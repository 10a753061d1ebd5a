package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"safespace/models"
)

// DocumentAccounts implements Accounts on top of a Documents store. Session
// ids double as bearer tokens.
type DocumentAccounts struct {
	docs Documents
	cost int
}

// NewDocumentAccounts creates an accounts capability. A cost of zero uses
// bcrypt.DefaultCost.
func NewDocumentAccounts(docs Documents, cost int) *DocumentAccounts {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &DocumentAccounts{docs: docs, cost: cost}
}

// Create registers a new account. Emails are unique, ignoring case.
func (a *DocumentAccounts) Create(ctx context.Context, id, email, password, name string) (models.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	existing, err := a.docs.List(ctx, models.AccountsCollection, Equal("email", email), Limit(1))
	if err != nil {
		return models.Account{}, err
	}
	if existing.Total > 0 {
		return models.Account{}, fmt.Errorf("%w: email %s already registered", ErrConflict, email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return models.Account{}, fmt.Errorf("hash password: %w", err)
	}

	doc, err := a.docs.Create(ctx, models.AccountsCollection, id, map[string]any{
		"email":        email,
		"name":         name,
		"passwordHash": string(hash),
	})
	if err != nil {
		return models.Account{}, err
	}
	return decodeAccount(doc)
}

// CreateSession checks the credentials and opens a session.
func (a *DocumentAccounts) CreateSession(ctx context.Context, email, password string) (models.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	list, err := a.docs.List(ctx, models.AccountsCollection, Equal("email", email), Limit(1))
	if err != nil {
		return models.Session{}, err
	}
	if len(list.Documents) == 0 {
		return models.Session{}, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}

	var account models.Account
	if err := Decode(list.Documents[0], &account); err != nil {
		return models.Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return models.Session{}, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}

	doc, err := a.docs.Create(ctx, models.SessionsCollection, UniqueID, map[string]any{
		"accountId": account.ID,
	})
	if err != nil {
		return models.Session{}, err
	}

	var session models.Session
	if err := Decode(doc, &session); err != nil {
		return models.Session{}, err
	}
	return session, nil
}

// DeleteSession ends a session.
func (a *DocumentAccounts) DeleteSession(ctx context.Context, sessionID string) error {
	err := a.docs.Delete(ctx, models.SessionsCollection, sessionID)
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: unknown session", ErrUnauthorized)
	}
	return err
}

// Get returns the account behind a session.
func (a *DocumentAccounts) Get(ctx context.Context, sessionID string) (models.Account, error) {
	if sessionID == "" {
		return models.Account{}, fmt.Errorf("%w: no session", ErrUnauthorized)
	}

	doc, err := a.docs.Get(ctx, models.SessionsCollection, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.Account{}, fmt.Errorf("%w: unknown session", ErrUnauthorized)
		}
		return models.Account{}, err
	}

	var session models.Session
	if err := Decode(doc, &session); err != nil {
		return models.Account{}, err
	}

	doc, err = a.docs.Get(ctx, models.AccountsCollection, session.AccountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.Account{}, fmt.Errorf("%w: account removed", ErrUnauthorized)
		}
		return models.Account{}, err
	}
	return decodeAccount(doc)
}

func decodeAccount(doc Document) (models.Account, error) {
	var account models.Account
	if err := Decode(doc, &account); err != nil {
		return models.Account{}, err
	}
	account.PasswordHash = ""
	return account, nil
}
