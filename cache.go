// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqltmpl

import (
	"sync"

	"github.com/canonical/sqltmpl/internal/parse"
)

// templateCache holds every template compiled in the process, keyed by its
// exact source text. Compiled templates are immutable so a cached Template is
// shared by all callers. Entries are never evicted.
//
// The mutex must be locked when accessing templates.
type templateCache struct {
	templates map[string]*Template
	mutex     sync.RWMutex
}

var once sync.Once
var singleTemplateCache *templateCache

// newTemplateCache returns the single instance of the template cache.
func newTemplateCache() *templateCache {
	once.Do(func() {
		singleTemplateCache = &templateCache{
			templates: map[string]*Template{},
		}
	})
	return singleTemplateCache
}

// lookup returns the cached Template for src, if any.
func (tc *templateCache) lookup(src string) (*Template, bool) {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	t, ok := tc.templates[src]
	return t, ok
}

// compile returns the cached Template for src, parsing and inserting it on
// first use. Parsing happens outside the lock, so two goroutines may parse
// the same source concurrently; only the first result is kept.
func (tc *templateCache) compile(src string) (*Template, error) {
	if t, ok := tc.lookup(src); ok {
		getLogger().Debug("template cache hit", "bytes", len(src))
		return t, nil
	}

	tree, err := parse.Parse(src)
	if err != nil {
		return nil, err
	}
	t := &Template{src: src, tree: tree}

	tc.mutex.Lock()
	// Check if a template has been inserted by someone else since we last
	// checked.
	alt, ok := tc.templates[src]
	if !ok {
		tc.templates[src] = t
	}
	tc.mutex.Unlock()

	if ok {
		getLogger().Debug("template cache hit", "bytes", len(src))
		return alt, nil
	}
	getLogger().Debug("template compiled", "bytes", len(src), "nodes", len(tree.Nodes))
	return t, nil
}

// len returns the number of cached templates.
func (tc *templateCache) len() int {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	return len(tc.templates)
}

// reset empties the cache.
func (tc *templateCache) reset() {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	tc.templates = map[string]*Template{}
}
