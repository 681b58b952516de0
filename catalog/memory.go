package catalog

import (
	"context"
	"sort"
	"sync"
)

type MemoryStore struct {
	sync.RWMutex
	videos map[int64]Video
}

func NewMemoryStore(videos ...Video) *MemoryStore {
	s := &MemoryStore{
		videos: make(map[int64]Video),
	}
	for _, v := range videos {
		s.videos[v.ID] = v
	}
	return s
}

func (s *MemoryStore) FindVideo(_ context.Context, id int64) (Video, bool, error) {
	s.RLock()
	defer s.RUnlock()
	v, exists := s.videos[id]
	return v, exists, nil
}

func (s *MemoryStore) SaveVideo(_ context.Context, v Video) error {
	if err := v.Validate(); err != nil {
		return err
	}
	s.Lock()
	defer s.Unlock()
	s.videos[v.ID] = v
	return nil
}

// Videos returns every entry ordered by id.
func (s *MemoryStore) Videos() []Video {
	s.RLock()
	defer s.RUnlock()
	videos := make([]Video, 0, len(s.videos))
	for _, v := range s.videos {
		videos = append(videos, v)
	}
	sort.Slice(videos, func(i, j int) bool { return videos[i].ID < videos[j].ID })
	return videos
}
