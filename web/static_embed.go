// Package web holds the embedded HTML views and public assets.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// View file names.
const (
	HomeView       = "home.html"
	AddStudentView = "addStudent.html"
	AboutView      = "about.html"
)

//go:embed views/*.html
var viewsFS embed.FS

//go:embed public
var publicFS embed.FS

// View returns the bytes of a named view.
func View(name string) ([]byte, error) {
	return fs.ReadFile(viewsFS, path.Join("views", name))
}

// Public returns the public asset tree rooted at public/.
func Public() fs.FS {
	sub, err := fs.Sub(publicFS, "public")
	if err != nil {
		// only possible if the embed directive changes
		panic(err)
	}
	return sub
}

// HasAsset reports whether urlPath names a regular file in fsys.
func HasAsset(fsys fs.FS, urlPath string) bool {
	name := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if name == "" || !fs.ValidPath(name) {
		return false
	}
	info, err := fs.Stat(fsys, name)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// FileSystem adapts fsys for http.FileServer and gin.
func FileSystem(fsys fs.FS) http.FileSystem {
	return http.FS(fsys)
}
