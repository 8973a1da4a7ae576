package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/buntdb"
)

// ErrNotFound is returned when no session exists for a token, either because
// it never existed or because it expired.
var ErrNotFound = errors.New("session not found")

// Session associates a client with a long-lived access token and the profile
// fields fetched when the token was issued. The access token never leaves the
// server; clients only ever hold the opaque store token.
type Session struct {
	AccessToken       string    `json:"accessToken"`
	UserID            string    `json:"userId"`
	Username          string    `json:"username"`
	AccountType       string    `json:"accountType"`
	MediaCount        int       `json:"mediaCount"`
	ProfilePictureURL string    `json:"profilePictureUrl,omitempty"`
	Biography         string    `json:"biography,omitempty"`
	Website           string    `json:"website,omitempty"`
	FollowersCount    int       `json:"followersCount,omitempty"`
	FollowsCount      int       `json:"followsCount,omitempty"`
	Name              string    `json:"name,omitempty"`
	TokenExpires      time.Time `json:"tokenExpires"`
}

// Store defines the primitives required to persist sessions between requests.
type Store interface {
	// Create persists the session and returns the opaque token identifying it.
	Create(sess Session) (string, error)

	// Get returns the session identified by token, or ErrNotFound.
	Get(token string) (Session, error)

	// Update replaces the session identified by token and resets its expiry.
	Update(token string, sess Session) error

	// Delete removes the session. Deleting an unknown token is not an error.
	Delete(token string) error
}

const keyPrefix = "session:"

// NewBuntStore returns a session store backed by the provided buntdb database.
// Entries expire after ttl using the database's native TTL support.
func NewBuntStore(db *buntdb.DB, ttl time.Duration) Store {
	return &BuntStore{
		db:  db,
		ttl: ttl,
	}
}

// BuntStore implements a buntdb-backed session store
//
// - implements session.Store
type BuntStore struct {
	db  *buntdb.DB
	ttl time.Duration
}

// Create implements session.Store
func (s BuntStore) Create(sess Session) (string, error) {
	token := uuid.NewString()

	err := s.set(token, sess)
	if err != nil {
		return "", err
	}

	return token, nil
}

// Get implements session.Store
func (s BuntStore) Get(token string) (Session, error) {
	var raw string

	err := s.db.View(func(tx *buntdb.Tx) error {
		var err error
		raw, err = tx.Get(keyPrefix + token)
		return err
	})

	if errors.Is(err, buntdb.ErrNotFound) {
		return Session{}, ErrNotFound
	}

	if err != nil {
		return Session{}, fmt.Errorf("failed to view the db: %v", err)
	}

	var sess Session

	err = json.Unmarshal([]byte(raw), &sess)
	if err != nil {
		return Session{}, fmt.Errorf("failed to unmarshal session: %v", err)
	}

	return sess, nil
}

// Update implements session.Store
func (s BuntStore) Update(token string, sess Session) error {
	_, err := s.Get(token)
	if err != nil {
		return err
	}

	return s.set(token, sess)
}

// Delete implements session.Store
func (s BuntStore) Delete(token string) error {
	err := s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(keyPrefix + token)
		return err
	})

	if errors.Is(err, buntdb.ErrNotFound) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to update the db: %v", err)
	}

	return nil
}

func (s BuntStore) set(token string, sess Session) error {
	buf, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %v", err)
	}

	err = s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(keyPrefix+token, string(buf), &buntdb.SetOptions{
			Expires: true,
			TTL:     s.ttl,
		})
		return err
	})

	if err != nil {
		return fmt.Errorf("failed to update the db: %v", err)
	}

	return nil
}
