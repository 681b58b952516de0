package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/syndtr/goleveldb/leveldb"
)

// uploadStore remembers the relay chunk URL of each unfinished upload by file
// fingerprint, so an interrupted upload continues while its session lives.
type uploadStore struct {
	db *leveldb.DB
}

func openUploadStore(dir string) (*uploadStore, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("open upload state %s: %w", dir, err)
	}
	return &uploadStore{db: db}, nil
}

func (s *uploadStore) Get(fingerprint string) (string, bool) {
	v, err := s.db.Get([]byte(fingerprint), nil)
	if err != nil {
		return "", false
	}
	return string(v), true
}

func (s *uploadStore) Set(fingerprint, url string) {
	if err := s.db.Put([]byte(fingerprint), []byte(url), nil); err != nil {
		log.Warn().Err(err).Msg("unable to remember upload url")
	}
}

func (s *uploadStore) Delete(fingerprint string) {
	if err := s.db.Delete([]byte(fingerprint), nil); err != nil {
		log.Warn().Err(err).Msg("unable to forget upload url")
	}
}

func (s *uploadStore) Close() {
	if err := s.db.Close(); err != nil {
		log.Warn().Err(err).Msg("unable to close upload state")
	}
}
