// Package nvm provides byte addressable non-volatile storage. Writes land in a working image and
// only reach the backing medium on Commit.
package nvm

import (
	"errors"
	"io"
	"sync"

	"github.com/asdine/storm/v3"
)

const (
	DEFAULT_SIZE = 512

	stormBucket = "nvm"
	stormKey    = "image"
)

var (
	ErrOutOfRange = errors.New("access outside of storage size")
)

type Storage interface {
	io.ReaderAt
	io.WriterAt
	Commit() error
}

// image is the working copy shared by the backends.
type image struct {
	buf  []byte
	lock sync.Mutex
}

func (m *image) ReadAt(p []byte, off int64) (int, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if off < 0 || off+int64(len(p)) > int64(len(m.buf)) {
		return 0, ErrOutOfRange
	}
	return copy(p, m.buf[off:]), nil
}

func (m *image) WriteAt(p []byte, off int64) (int, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if off < 0 || off+int64(len(p)) > int64(len(m.buf)) {
		return 0, ErrOutOfRange
	}
	return copy(m.buf[off:], p), nil
}

func (m *image) snapshot() []byte {
	m.lock.Lock()
	defer m.lock.Unlock()
	return append([]byte(nil), m.buf...)
}

// MemoryStorage keeps the committed image in memory. Erased cells read as 0xFF.
type MemoryStorage struct {
	image
	Committed []byte
	Commits   int
	CommitErr error
}

func NewMemoryStorage(size int) *MemoryStorage {
	m := &MemoryStorage{}
	m.buf = erased(size)
	m.Committed = erased(size)
	return m
}

func (m *MemoryStorage) Commit() error {
	if m.CommitErr != nil {
		return m.CommitErr
	}
	m.Committed = m.snapshot()
	m.Commits++
	return nil
}

// StormStorage persists the image as a single value in a storm (bolt) database.
type StormStorage struct {
	image
	db *storm.DB
}

func OpenStormStorage(path string, size int) (*StormStorage, error) {
	db, err := storm.Open(path)
	if err != nil {
		return nil, err
	}
	return NewStormStorage(db, size)
}

// NewStormStorage loads the stored image from db. A missing or wrongly sized image starts out
// erased.
func NewStormStorage(db *storm.DB, size int) (*StormStorage, error) {
	s := &StormStorage{db: db}

	var stored []byte
	err := db.Get(stormBucket, stormKey, &stored)
	switch {
	case err == storm.ErrNotFound:
		stored = nil
	case err != nil:
		return nil, err
	}

	s.buf = erased(size)
	copy(s.buf, stored)
	return s, nil
}

func (s *StormStorage) Commit() error {
	return s.db.Set(stormBucket, stormKey, s.snapshot())
}

func (s *StormStorage) Close() error {
	return s.db.Close()
}

func erased(size int) []byte {
	if size <= 0 {
		size = DEFAULT_SIZE
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 0xFF
	}
	return buf
}
