package collect

import "github.com/refscout/refscout/pkg/video"

// KnownSet tracks every URL a run must not select again: the ones already in
// storage and the ones accepted earlier in the same run. It only grows.
type KnownSet struct {
	persisted map[string]struct{}
	accepted  map[string]video.Platform
}

func NewKnownSet(persistedURLs []string) *KnownSet {
	k := &KnownSet{
		persisted: make(map[string]struct{}, len(persistedURLs)),
		accepted:  make(map[string]video.Platform),
	}
	for _, u := range persistedURLs {
		k.persisted[u] = struct{}{}
	}
	return k
}

// IsFresh reports whether url is neither stored nor accepted during this run.
func (k *KnownSet) IsFresh(url string) bool {
	if _, ok := k.persisted[url]; ok {
		return false
	}
	_, ok := k.accepted[url]
	return !ok
}

// Accept records item as claimed by its platform. It returns false when the
// URL was already known.
func (k *KnownSet) Accept(item video.Item) bool {
	if !k.IsFresh(item.URL) {
		return false
	}
	k.accepted[item.URL] = item.Platform
	return true
}

// Claims reports whether item is new and was accepted by platform p.
func (k *KnownSet) Claims(p video.Platform, item video.Item) bool {
	if _, ok := k.persisted[item.URL]; ok {
		return false
	}
	owner, ok := k.accepted[item.URL]
	return ok && owner == p
}

// Accepted returns how many URLs were accepted during this run.
func (k *KnownSet) Accepted() int { return len(k.accepted) }
