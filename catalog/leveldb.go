package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const levelDBKeyPrefix = "video:"

// LevelDBStore keeps videos as JSON documents in a local LevelDB, for
// single node deployments.
type LevelDBStore struct {
	db *leveldb.DB
}

func OpenLevelDBStore(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		WriteBuffer: 4 * 1024 * 1024,
	})
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &LevelDBStore{db: db}, nil
}

func (s *LevelDBStore) FindVideo(_ context.Context, id int64) (Video, bool, error) {
	b, err := s.db.Get(levelDBKey(id), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return Video{}, false, nil
	}
	if err != nil {
		return Video{}, false, fmt.Errorf("load video %d: %w", id, err)
	}

	var v Video
	if err := json.Unmarshal(b, &v); err != nil {
		return Video{}, false, fmt.Errorf("decode video %d: %w", id, err)
	}
	return v, true, nil
}

func (s *LevelDBStore) SaveVideo(_ context.Context, v Video) error {
	if err := v.Validate(); err != nil {
		return err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode video %d: %w", v.ID, err)
	}
	if err := s.db.Put(levelDBKey(v.ID), b, nil); err != nil {
		return fmt.Errorf("save video %d: %w", v.ID, err)
	}
	return nil
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}

func levelDBKey(id int64) []byte {
	return []byte(levelDBKeyPrefix + strconv.FormatInt(id, 10))
}
