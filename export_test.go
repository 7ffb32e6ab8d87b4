// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqltmpl

// CacheLen returns the number of templates in the process-wide cache.
func CacheLen() int {
	return templates.len()
}

// ResetCache empties the process-wide cache.
func ResetCache() {
	templates.reset()
}
