package identity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	id  string
	err error
}

func (m *memStore) Get() (string, error) { return m.id, m.err }
func (m *memStore) Set(id string) error  { m.id = id; return m.err }
func (m *memStore) Delete() error        { m.id = ""; return m.err }

func env(vals map[string]string) func(string) string {
	return func(k string) string { return vals[k] }
}

func TestCurrentPrefersEnvironment(t *testing.T) {
	r := NewResolverWithStore(&memStore{id: "stored"}, env(map[string]string{EnvVar: " alice "}))
	id, err := r.Current()
	require.NoError(t, err)
	assert.Equal(t, "alice", id)
}

func TestCurrentFallsBackToStore(t *testing.T) {
	s := &memStore{}
	r := NewResolverWithStore(s, env(nil))

	id, err := r.Current()
	require.NoError(t, err)
	assert.Equal(t, Anonymous, id)

	require.NoError(t, r.Login("  bob "))
	id, err = r.Current()
	require.NoError(t, err)
	assert.Equal(t, "bob", id)

	require.NoError(t, r.Logout())
	id, _ = r.Current()
	assert.Equal(t, Anonymous, id)
}

func TestCurrentReportsStoreFailure(t *testing.T) {
	r := NewResolverWithStore(&memStore{err: errors.New("dbus unavailable")}, env(nil))
	id, err := r.Current()
	assert.Error(t, err)
	assert.Equal(t, Anonymous, id)
}

func TestLoginRejectsBlank(t *testing.T) {
	s := &memStore{id: "carol"}
	r := NewResolverWithStore(s, env(nil))
	assert.Error(t, r.Login("   "))
	assert.Equal(t, "carol", s.id)
}
