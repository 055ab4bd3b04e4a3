package gateway

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// spaHandler serves a single-page frontend bundle: real files as-is, every
// other path falls back to index.html so client-side routes deep-link.
type spaHandler struct {
	dir string
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := filepath.Clean(r.URL.Path)
	if strings.Contains(name, "..") {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(h.dir, name)
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		http.ServeFile(w, r, path)
		return
	}
	http.ServeFile(w, r, filepath.Join(h.dir, "index.html"))
}
