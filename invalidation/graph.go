package invalidation

import (
	"regexp"
	"sort"
	"sync"
)

// Graph 缓存键依赖图
//
// An edge source -> dependent means dependent was derived from source and
// must go when source goes. The reverse index lets RemoveKey drop a key's
// edges in both directions. Graph satisfies cache.DependencyRecorder and
// cache.SourceTagger; tags are kept only for keys that have dependents, so
// a tag invalidation can cascade from sources no longer held in memory.
type Graph struct {
	mu         sync.RWMutex
	dependents map[string]map[string]struct{} // source -> dependents
	sources    map[string]map[string]struct{} // dependent -> sources
	tags       map[string][]string            // source -> tags
	tagged     map[string]map[string]struct{} // tag -> sources
}

// NewGraph 创建依赖图
func NewGraph() *Graph {
	return &Graph{
		dependents: make(map[string]map[string]struct{}),
		sources:    make(map[string]map[string]struct{}),
		tags:       make(map[string][]string),
		tagged:     make(map[string]map[string]struct{}),
	}
}

// TagSource records the tags key was last written with. Keys without
// dependents are ignored.
func (g *Graph) TagSource(key string, tags []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.dependents[key]; !ok {
		return
	}
	g.untagLocked(key)
	if len(tags) == 0 {
		return
	}
	g.tags[key] = append([]string(nil), tags...)
	for _, t := range tags {
		addEdge(g.tagged, t, key)
	}
}

func (g *Graph) untagLocked(key string) {
	for _, t := range g.tags[key] {
		removeEdge(g.tagged, t, key)
	}
	delete(g.tags, key)
}

// SourcesTagged returns the source keys carrying any of tags, sorted
func (g *Graph) SourcesTagged(tags ...string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	set := make(map[string]struct{})
	for _, t := range tags {
		for k := range g.tagged[t] {
			set[k] = struct{}{}
		}
	}
	return sortedSet(set)
}

// SourcesMatching returns the source keys matching re, sorted
func (g *Graph) SourcesMatching(re *regexp.Regexp) []string {
	if re == nil {
		return nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	set := make(map[string]struct{})
	for k := range g.dependents {
		if re.MatchString(k) {
			set[k] = struct{}{}
		}
	}
	return sortedSet(set)
}

// AddDependency records that dependent depends on source
func (g *Graph) AddDependency(dependent, source string) {
	if dependent == "" || source == "" || dependent == source {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	addEdge(g.dependents, source, dependent)
	addEdge(g.sources, dependent, source)
}

// RemoveKey drops every edge touching key
func (g *Graph) RemoveKey(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for dep := range g.dependents[key] {
		removeEdge(g.sources, dep, key)
	}
	delete(g.dependents, key)
	g.untagLocked(key)
	g.dropSourcesLocked(key)
}

// dropSourcesLocked removes the edges from key's sources to key, untagging
// sources left without dependents
func (g *Graph) dropSourcesLocked(key string) {
	for src := range g.sources[key] {
		removeEdge(g.dependents, src, key)
		if _, ok := g.dependents[src]; !ok {
			g.untagLocked(src)
		}
	}
	delete(g.sources, key)
}

// Forget drops the edges recording what key was derived from. Edges to its
// own dependents stay: they are still derived from key's identity.
func (g *Graph) Forget(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dropSourcesLocked(key)
}

// Dependents returns the direct dependents of key, sorted
func (g *Graph) Dependents(key string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedSet(g.dependents[key])
}

// Sources returns the keys key was derived from, sorted
func (g *Graph) Sources(key string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedSet(g.sources[key])
}

// Closure returns key followed by everything derived from it in BFS order.
// Without recursive only direct dependents are included; maxDepth > 0 bounds
// the levels visited. Each key appears once, so cycles terminate.
func (g *Graph) Closure(key string, recursive bool, maxDepth int) []string {
	if !recursive {
		maxDepth = 1
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := map[string]struct{}{key: {}}
	out := []string{key}
	level := []string{key}
	for depth := 1; len(level) > 0; depth++ {
		if maxDepth > 0 && depth > maxDepth {
			break
		}
		var next []string
		for _, k := range level {
			for _, dep := range sortedSet(g.dependents[k]) {
				if _, seen := visited[dep]; seen {
					continue
				}
				visited[dep] = struct{}{}
				out = append(out, dep)
				next = append(next, dep)
			}
		}
		level = next
	}
	return out
}

// Len 返回边数
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, deps := range g.dependents {
		n += len(deps)
	}
	return n
}

func addEdge(m map[string]map[string]struct{}, from, to string) {
	set, ok := m[from]
	if !ok {
		set = make(map[string]struct{})
		m[from] = set
	}
	set[to] = struct{}{}
}

func removeEdge(m map[string]map[string]struct{}, from, to string) {
	set, ok := m[from]
	if !ok {
		return
	}
	delete(set, to)
	if len(set) == 0 {
		delete(m, from)
	}
}

func sortedSet(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
