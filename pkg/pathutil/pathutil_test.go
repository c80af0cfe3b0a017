package pathutil

import (
	"path/filepath"
	"testing"
)

func TestExtension(t *testing.T) {
	cases := map[string]string{
		"a/b/app.JS":    ".js",
		"style.min.css": ".css",
		"noext":         "",
		"dir.v2/readme": "",
		"img/logo.PNG":  ".png",
	}
	for in, want := range cases {
		if got := Extension(in); got != want {
			t.Errorf("Extension(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestContainsFolder(t *testing.T) {
	tests := []struct {
		path   string
		folder string
		want   bool
	}{
		{"lib/a.js", "lib", true},
		{"src/lib/b.js", "lib", true},
		{"./lib/a.js", "lib", true},
		{"liberty/c.js", "lib", false},
		{"lib2/d.js", "lib", false},
		{"src/mylib/e.js", "lib", false},
		{"lib", "lib", false},
		{"src/lib.js", "lib", false},
		{"lib/a.js", "./lib", true},
		{"src/lib/b.js", "lib/", true},
		{"lib/a.js", "/lib", true},
		{"liberty/c.js", "./lib", false},
		{"a/vendor/js/x.js", "vendor/js", false},
		{"lib/a.js", "", false},
		{"lib/a.js", ".", false},
	}
	for _, tt := range tests {
		if got := ContainsFolder(tt.path, tt.folder); got != tt.want {
			t.Errorf("ContainsFolder(%q, %q) = %v, want %v", tt.path, tt.folder, got, tt.want)
		}
	}
}

func TestNormalizeFolder(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"lib", "lib"},
		{"./lib", "lib"},
		{"lib/", "lib"},
		{"./lib/", "lib"},
		{"/lib", "lib"},
		{" node_modules ", "node_modules"},
		{"", ""},
		{".", ""},
		{"./", ""},
	}
	for _, tt := range tests {
		got, err := NormalizeFolder(tt.in)
		if err != nil {
			t.Errorf("NormalizeFolder(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeFolder(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"vendor/js", "..", "../lib", `a\b`} {
		if _, err := NormalizeFolder(bad); err == nil {
			t.Errorf("NormalizeFolder(%q) should fail", bad)
		}
	}
}

func TestRelative(t *testing.T) {
	root := filepath.Join("tmp", "site")
	got := Relative(root, filepath.Join(root, "css", "main.css"))
	if got != "css/main.css" {
		t.Errorf("Relative = %q, want css/main.css", got)
	}
}

func TestResolveAsset(t *testing.T) {
	root := filepath.FromSlash("/srv/site")
	source := filepath.FromSlash("/srv/site/css/main.css")

	tests := []struct {
		ref    string
		want   string
		wantOK bool
	}{
		{"img/logo.png", "/srv/site/css/img/logo.png", true},
		{"../img/logo.png?v=1234", "/srv/site/img/logo.png", true},
		{"/img/logo.png#frag", "/srv/site/img/logo.png", true},
		{"data:image/png;base64,AAAA", "", false},
		{"https://cdn.example.com/a.png", "", false},
		{"HTTP://cdn.example.com/a.png", "", false},
		{"//cdn.example.com/a.png", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ResolveAsset(tt.ref, source, root)
		if ok != tt.wantOK {
			t.Errorf("ResolveAsset(%q) ok = %v, want %v", tt.ref, ok, tt.wantOK)
			continue
		}
		if ok && got != filepath.FromSlash(tt.want) {
			t.Errorf("ResolveAsset(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}

func TestStripQuery(t *testing.T) {
	if got := StripQuery("a.png?v=1&x=2"); got != "a.png" {
		t.Errorf("StripQuery = %q", got)
	}
	if got := StripQuery("a.svg#icon"); got != "a.svg" {
		t.Errorf("StripQuery = %q", got)
	}
	if got := StripQuery("a.png"); got != "a.png" {
		t.Errorf("StripQuery = %q", got)
	}
}
