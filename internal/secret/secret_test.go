package secret

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{}

func (failingStore) Set(string, []byte) error   { return errors.New("boom") }
func (failingStore) Get(string) ([]byte, error) { return nil, errors.New("boom") }
func (failingStore) Delete(string) error        { return errors.New("boom") }

func TestEnvName(t *testing.T) {
	assert.Equal(t, "TABLESTORE_SECRET_TABLESTORE_DB", EnvName("tablestore-db"))
}

func TestEnvStore_ReadsEnvironment(t *testing.T) {
	t.Setenv("TABLESTORE_SECRET_TABLESTORE_DB", "hunter2")
	s := NewEnvStore()

	v, err := s.Get("tablestore-db")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", string(v))

	require.NoError(t, s.Set("tablestore-db", []byte("override")))
	v, _ = s.Get("tablestore-db")
	assert.Equal(t, "override", string(v))

	require.NoError(t, s.Delete("tablestore-db"))
	v, _ = s.Get("tablestore-db")
	assert.Equal(t, "hunter2", string(v))
}

func TestChain_FirstNonEmptyWins(t *testing.T) {
	first, second := NewEnvStore(), NewEnvStore()
	require.NoError(t, second.Set("k", []byte("from-second")))

	c := Chain{first, second}
	v, err := c.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "from-second", string(v))

	require.NoError(t, c.Set("k", []byte("from-first")))
	v, _ = c.Get("k")
	assert.Equal(t, "from-first", string(v))

	v, err = c.Get("missing")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestChain_PropagatesErrors(t *testing.T) {
	_, err := Chain{failingStore{}}.Get("k")
	assert.Error(t, err)
	assert.NoError(t, Chain{}.Set("k", nil))
}
