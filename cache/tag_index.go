package cache

import "sort"

// TagIndex maps a tag to the keys of live entries carrying it.
// Not safe for concurrent use; EntryStore guards it.
type TagIndex struct {
	keys map[string]map[string]struct{}
}

// NewTagIndex creates an empty index
func NewTagIndex() *TagIndex {
	return &TagIndex{keys: make(map[string]map[string]struct{})}
}

// Add indexes key under every tag
func (t *TagIndex) Add(key string, tags []string) {
	for _, tag := range tags {
		set, ok := t.keys[tag]
		if !ok {
			set = make(map[string]struct{})
			t.keys[tag] = set
		}
		set[key] = struct{}{}
	}
}

// Remove drops key from every tag; empty tags are deleted
func (t *TagIndex) Remove(key string, tags []string) {
	for _, tag := range tags {
		set, ok := t.keys[tag]
		if !ok {
			continue
		}
		delete(set, key)
		if len(set) == 0 {
			delete(t.keys, tag)
		}
	}
}

// Keys returns the keys under tag in lexical order
func (t *TagIndex) Keys(tag string) []string {
	set := t.keys[tag]
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether key is indexed under tag
func (t *TagIndex) Has(tag, key string) bool {
	_, ok := t.keys[tag][key]
	return ok
}

// Count returns the number of keys under tag
func (t *TagIndex) Count(tag string) int {
	return len(t.keys[tag])
}

// Tags returns every indexed tag in lexical order
func (t *TagIndex) Tags() []string {
	tags := make([]string, 0, len(t.keys))
	for tag := range t.keys {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
