// Package objectstore stores product images in S3-compatible buckets or on
// local disk.
package objectstore

import (
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var unsafeSegment = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// objectKey builds products/<product>/<uuid><ext>. Uploads not yet tied to a
// product go under products/unassigned.
func objectKey(productID, filename string) string {
	owner := unsafeSegment.ReplaceAllString(productID, "")
	if owner == "" {
		owner = "unassigned"
	}
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) > 6 || strings.ContainsAny(ext, `/\`) {
		ext = ""
	}
	return "products/" + owner + "/" + uuid.NewString() + ext
}

// keyFromURL strips base from url. It reports false for URLs outside base.
func keyFromURL(base, url string) (string, bool) {
	prefix := strings.TrimRight(base, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(url, prefix)
	if key == "" || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}
