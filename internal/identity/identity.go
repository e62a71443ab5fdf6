// Package identity supplies the acting user's id. The id is an opaque
// string used only to attribute activity.
package identity

import (
	"fmt"
	"os"
	"strings"
)

// EnvVar overrides the stored identity.
const EnvVar = "WORKBOARD_USER"

// Anonymous is used when no identity is configured.
const Anonymous = "anonymous"

// Store persists the user id between sessions.
type Store interface {
	Get() (string, error)
	Set(id string) error
	Delete() error
}

// Resolver looks the acting user up from the environment, then a Store.
type Resolver struct {
	store  Store
	getenv func(string) string
}

// NewResolver returns a Resolver backed by the system keyring.
func NewResolver() *Resolver {
	return &Resolver{store: keyringStore{}, getenv: os.Getenv}
}

// NewResolverWithStore returns a Resolver over a custom store and
// environment lookup.
func NewResolverWithStore(s Store, getenv func(string) string) *Resolver {
	if getenv == nil {
		getenv = os.Getenv
	}
	return &Resolver{store: s, getenv: getenv}
}

// Current returns the acting user id. Keyring failures fall back to
// Anonymous and are returned alongside it so callers can log them.
func (r *Resolver) Current() (string, error) {
	if id := strings.TrimSpace(r.getenv(EnvVar)); id != "" {
		return id, nil
	}
	id, err := r.store.Get()
	if err != nil {
		return Anonymous, err
	}
	if id = strings.TrimSpace(id); id == "" {
		return Anonymous, nil
	}
	return id, nil
}

// Login stores id as the acting user.
func (r *Resolver) Login(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("user id must not be empty")
	}
	return r.store.Set(id)
}

// Logout forgets the stored user.
func (r *Resolver) Logout() error {
	return r.store.Delete()
}
