// Package checkpoint persists component snapshots in a pebble database under the runtime status dir.
package checkpoint

import (
	"bytes"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	dirName   = "checkpoint"
	keyPrefix = "/snapshot/"
)

var ErrClosed = errors.New("checkpoint store is closed")

type Store struct {
	mutex sync.Mutex
	db    *pebble.DB
}

//Open the store in statusDir/checkpoint, creating it when missing.
func Open(statusDir string) (*Store, error) {
	path := filepath.Join(statusDir, dirName)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, errors.WithMessagef(err, "can't open checkpoint store at %s", path)
	}
	return &Store{db: db}, nil
}

func key(name string) []byte {
	return []byte(keyPrefix + name)
}

//Load return the snapshot saved for name, false when there is none.
func (s *Store) Load(name string) ([]byte, bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.db == nil {
		return nil, false, ErrClosed
	}
	value, closer, err := s.db.Get(key(name))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.WithMessagef(err, "can't load %s snapshot", name)
	}
	defer closer.Close()
	return bytes.Clone(value), true, nil
}

//Commit save the snapshot of name synchronously.
func (s *Store) Commit(name string, snapshot []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.db == nil {
		return ErrClosed
	}
	if err := s.db.Set(key(name), snapshot, pebble.Sync); err != nil {
		return errors.WithMessagef(err, "can't save %s snapshot", name)
	}
	return nil
}

func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

//Marshal encode a snapshot value.
func Marshal(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

//Unmarshal decode a snapshot value.
func Unmarshal(data []byte, v interface{}) error {
	return msgpack.Unmarshal(data, v)
}
