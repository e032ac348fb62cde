// Package store persists player accounts in a bbolt database file.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	bbolt "go.etcd.io/bbolt"
	"golang.org/x/crypto/bcrypt"
)

var bucketAccounts = []byte("accounts")

var (
	ErrAccountExists   = errors.New("store: account already exists")
	ErrAccountNotFound = errors.New("store: account not found")
	ErrBadCredentials  = errors.New("store: invalid username or password")
)

// Account is one stored player record. PasswordHash is a bcrypt hash and
// never leaves this package in plaintext-comparable form.
type Account struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	LastLogin    time.Time `json:"last_login,omitempty"`
}

// Accounts wraps a bbolt database holding one bucket of JSON-encoded
// account records, keyed by lower-cased username.
type Accounts struct {
	bolt *bbolt.DB
}

// Open opens or creates the account database file and ensures the bucket
// exists.
func Open(path string) (*Accounts, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketAccounts)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create bucket: %w", err)
	}
	return &Accounts{bolt: db}, nil
}

// Close closes the underlying bbolt database.
func (a *Accounts) Close() error {
	if a.bolt != nil {
		return a.bolt.Close()
	}
	return nil
}

func key(username string) []byte {
	return []byte(strings.ToLower(username))
}

// Create hashes the password and stores a new account. An empty role
// defaults to "player". Fails with ErrAccountExists if the username is
// already taken (case-insensitive).
func (a *Accounts) Create(username, password, role string) (*Account, error) {
	if role == "" {
		role = "player"
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("store: hash password: %w", err)
	}
	acct := &Account{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	data, err := json.Marshal(acct)
	if err != nil {
		return nil, fmt.Errorf("store: encode account %q: %w", username, err)
	}
	err = a.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAccounts)
		if b.Get(key(username)) != nil {
			return ErrAccountExists
		}
		return b.Put(key(username), data)
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// Get returns the stored record for a username, or ErrAccountNotFound.
func (a *Accounts) Get(username string) (*Account, error) {
	var acct *Account
	err := a.bolt.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketAccounts).Get(key(username))
		if data == nil {
			return ErrAccountNotFound
		}
		acct = new(Account)
		return json.Unmarshal(data, acct)
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// Authenticate verifies a username/password pair and stamps LastLogin on
// success. Unknown usernames and wrong passwords both come back as
// ErrBadCredentials so callers cannot probe for accounts.
func (a *Accounts) Authenticate(username, password string) (*Account, error) {
	acct, err := a.Get(username)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)) != nil {
		return nil, ErrBadCredentials
	}
	if err := a.Touch(username); err != nil {
		return nil, err
	}
	acct.LastLogin = time.Now().UTC()
	return acct, nil
}

// Touch updates LastLogin for an existing account.
func (a *Accounts) Touch(username string) error {
	return a.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAccounts)
		data := b.Get(key(username))
		if data == nil {
			return ErrAccountNotFound
		}
		var acct Account
		if err := json.Unmarshal(data, &acct); err != nil {
			return fmt.Errorf("store: decode account %q: %w", username, err)
		}
		acct.LastLogin = time.Now().UTC()
		out, err := json.Marshal(&acct)
		if err != nil {
			return err
		}
		return b.Put(key(username), out)
	})
}

// SetRole changes an account's role.
func (a *Accounts) SetRole(username, role string) error {
	return a.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAccounts)
		data := b.Get(key(username))
		if data == nil {
			return ErrAccountNotFound
		}
		var acct Account
		if err := json.Unmarshal(data, &acct); err != nil {
			return fmt.Errorf("store: decode account %q: %w", username, err)
		}
		acct.Role = role
		out, err := json.Marshal(&acct)
		if err != nil {
			return err
		}
		return b.Put(key(username), out)
	})
}

// Snapshot writes a consistent copy of the database to destPath.
func (a *Accounts) Snapshot(destPath string) error {
	return a.bolt.View(func(tx *bbolt.Tx) error {
		f, err := os.Create(destPath)
		if err != nil {
			return fmt.Errorf("store: snapshot %s: %w", destPath, err)
		}
		defer f.Close()
		_, err = tx.WriteTo(f)
		return err
	})
}

// Count returns the number of stored accounts.
func (a *Accounts) Count() (int, error) {
	var n int
	err := a.bolt.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketAccounts).Stats().KeyN
		return nil
	})
	return n, err
}
