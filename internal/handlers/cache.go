package handlers

import (
	"path"
	"strings"
)

const (
	cacheNoStore = "no-store"
	cacheWeek    = "public, max-age=604800"
	cacheMonth   = "public, max-age=2592000"
	cacheDay     = "public, max-age=86400"
)

// CacheControl picks the Cache-Control value for a static path relative
// to the static root. Uploads are never cached. Extensions match case
// sensitively, so "app.JS" gets the default policy.
func CacheControl(name, uploadPrefix string) string {
	if uploadPrefix != "" && strings.HasPrefix(name, uploadPrefix) {
		return cacheNoStore
	}

	switch path.Ext(name) {
	case ".css", ".js":
		return cacheWeek
	case ".jpg", ".jpeg", ".png", ".gif", ".svg", ".ico":
		return cacheMonth
	default:
		return cacheDay
	}
}
