// Package pathutil holds the path helpers shared by the pipeline: extension
// extraction, relative paths, exclude-folder containment and asset reference
// resolution.
package pathutil

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Extension returns the lowercased extension of p including the leading dot.
func Extension(p string) string {
	return strings.ToLower(filepath.Ext(p))
}

// Relative returns p relative to base using forward slashes. When no relative
// path exists (different volumes) the slash form of p is returned.
func Relative(base, p string) string {
	rel, err := filepath.Rel(base, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}

// NormalizeFolder cleans an exclude-folder name. "./lib", "lib/" and "/lib"
// all become "lib"; an empty name or "." means no folder. Only a single
// directory name is accepted.
func NormalizeFolder(folder string) (string, error) {
	f := strings.TrimSpace(filepath.ToSlash(folder))
	if f == "" {
		return "", nil
	}
	f = strings.Trim(path.Clean(f), "/")
	f = strings.TrimPrefix(f, "./")
	switch {
	case f == "" || f == ".":
		return "", nil
	case f == ".." || strings.ContainsAny(f, `/\`):
		return "", fmt.Errorf("exclude folder must be a single folder name, got %q", folder)
	}
	return f, nil
}

// ContainsFolder reports whether relPath has folder as one of its directory
// segments. Only whole segments match: "lib" matches "lib/a.js" and
// "src/lib/b.js" but not "liberty/c.js" or "lib2/d.js". The final segment is
// the file name and never matches. folder is normalized with NormalizeFolder;
// an invalid folder matches nothing.
func ContainsFolder(relPath, folder string) bool {
	folder, err := NormalizeFolder(folder)
	if err != nil || folder == "" {
		return false
	}
	clean := filepath.ToSlash(filepath.Clean(relPath))
	clean = strings.TrimPrefix(clean, "./")

	dirs := strings.Split(clean, "/")
	if len(dirs) < 2 {
		return false
	}
	for _, dir := range dirs[:len(dirs)-1] {
		if dir == folder {
			return true
		}
	}
	return false
}

// Resolve returns the absolute, cleaned form of p.
func Resolve(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// StripQuery removes any query string or fragment from an asset reference.
func StripQuery(ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		return ref[:i]
	}
	return ref
}

// IsDataURI reports whether ref is an inline data URI.
func IsDataURI(ref string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(ref)), "data:")
}

// IsRemote reports whether ref points at another host: http, https or a
// protocol-relative URL.
func IsRemote(ref string) bool {
	r := strings.ToLower(strings.TrimSpace(ref))
	return strings.HasPrefix(r, "http://") || strings.HasPrefix(r, "https://") || strings.HasPrefix(r, "//")
}

// ResolveAsset resolves an asset reference found in sourceFile to an absolute
// filesystem path. References starting with "/" resolve against root.
// Data URIs, remote URLs and empty references return ok=false.
func ResolveAsset(ref, sourceFile, root string) (string, bool) {
	p := StripQuery(strings.TrimSpace(ref))
	if p == "" || IsDataURI(p) || IsRemote(p) {
		return "", false
	}
	if strings.HasPrefix(p, "/") {
		return filepath.Join(root, filepath.FromSlash(p)), true
	}
	base := filepath.Dir(sourceFile)
	return filepath.Clean(filepath.Join(base, filepath.FromSlash(p))), true
}
