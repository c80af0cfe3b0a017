// Package assetref finds image references inside script and style files and
// rewrites them with a ?v=<token> cache-busting query.
//
// Script files share one token per run. Style files get the content hash of
// each referenced image from the hash ledger, so a token only changes when the
// image does.
package assetref

import (
	"strings"

	"github.com/fulmenhq/assetneat/pkg/ledger"
	"github.com/fulmenhq/assetneat/pkg/logger"
	"github.com/fulmenhq/assetneat/pkg/pathutil"
	"github.com/google/uuid"
)

// VersionParam is the query parameter carrying the version token.
const VersionParam = "v"

// Options configures versioning.
type Options struct {
	// Extensions is the allow-list of image extensions. Empty means DefaultExtensions.
	Extensions []string `json:"extensions,omitempty" yaml:"extensions,omitempty" mapstructure:"extensions"`
	// Digest selects the ledger digest (md5, sha256, blake3).
	Digest string `json:"digest,omitempty" yaml:"digest,omitempty" mapstructure:"digest"`
	// ScriptToken pins the token used for script references. Empty means a
	// fresh random token per run.
	ScriptToken string `json:"scriptToken,omitempty" yaml:"scriptToken,omitempty" mapstructure:"scriptToken"`
}

// Hasher supplies per-image content hashes for style references.
type Hasher interface {
	GenerateHash(path string) (ledger.Result, error)
}

// Result is the outcome of rewriting one file.
type Result struct {
	Content string
	// Modified is true iff Content differs from the input.
	Modified bool
	// Rewritten counts references whose text changed to a new version.
	Rewritten int
	// Reverted counts references reset to their unversioned form.
	Reverted int
	// Missing lists resolved image paths that could not be hashed.
	Missing []string
}

// Rewriter applies the per-kind policies. It holds no per-file state and is
// safe for concurrent use.
type Rewriter struct {
	allowed map[string]bool
	script  []*Pattern
	style   []*Pattern
	log     *logger.Logger
}

// New compiles the patterns for opts.
func New(opts Options, log *logger.Logger) *Rewriter {
	if log == nil {
		log = logger.Discard()
	}
	exts := NormalizeExtensions(opts.Extensions)
	allowed := make(map[string]bool, len(exts))
	for _, e := range exts {
		allowed["."+e] = true
	}
	return &Rewriter{
		allowed: allowed,
		script:  PatternsFor(KindScript, exts),
		style:   PatternsFor(KindStyle, exts),
		log:     log,
	}
}

// NewRunToken returns a random 8 hex character token.
func NewRunToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:ledger.HashLength]
}

// Allowed reports whether ref has an extension on the allow-list.
func (r *Rewriter) Allowed(ref string) bool {
	return r.allowed[pathutil.Extension(pathutil.StripQuery(ref))]
}

// decision is the phase-two outcome for one distinct reference path.
type decision struct {
	skip    bool
	version string // empty with skip=false means revert to unversioned
}

// RewriteScript gives every eligible reference in content the same token.
// Data URIs and remote URLs are left untouched.
func (r *Rewriter) RewriteScript(content, token string) Result {
	return r.rewrite(content, r.script, func(ref string) decision {
		if pathutil.IsDataURI(ref) || pathutil.IsRemote(ref) || !r.Allowed(ref) {
			return decision{skip: true}
		}
		return decision{version: token}
	})
}

// RewriteStyle versions each eligible reference in a style file with the
// content hash of the image it points to. sourcePath is the absolute path of
// the style file; root anchors references starting with "/". References whose
// image cannot be hashed are reverted to their unversioned form.
func (r *Rewriter) RewriteStyle(content, sourcePath, root string, h Hasher) Result {
	var missing []string
	res := r.rewrite(content, r.style, func(ref string) decision {
		abs, ok := pathutil.ResolveAsset(ref, sourcePath, root)
		if !ok || !r.Allowed(abs) {
			return decision{skip: true}
		}
		hr, err := h.GenerateHash(abs)
		if err != nil {
			r.log.Warn("referenced image could not be hashed",
				logger.Path(sourcePath), logger.String("reference", ref), logger.Err(err))
			missing = append(missing, abs)
			return decision{}
		}
		if hr.Changed && hr.Previous != "" {
			r.log.Debug("referenced image changed",
				logger.String("image", abs), logger.String("previous", hr.Previous), logger.String("hash", hr.Hash))
		}
		return decision{version: hr.Hash}
	})
	res.Missing = missing
	return res
}

// rewrite runs every pattern in order. For each pattern it first collects all
// matches, then resolves one decision per distinct path (this is where any
// I/O happens), then splices the replacements by span. Later patterns see the
// output of earlier ones.
func (r *Rewriter) rewrite(content string, patterns []*Pattern, decide func(ref string) decision) Result {
	original := content
	res := Result{}

	for _, p := range patterns {
		matches := p.FindAll(content)
		if len(matches) == 0 {
			continue
		}

		decisions := make(map[string]decision, len(matches))
		for _, m := range matches {
			if _, seen := decisions[m.Path]; !seen {
				decisions[m.Path] = decide(m.Path)
			}
		}

		var b strings.Builder
		b.Grow(len(content) + len(matches)*(len(VersionParam)+ledger.HashLength+2))
		last := 0
		for _, m := range matches {
			d := decisions[m.Path]
			old := content[m.Start:m.End]
			replacement := old
			if !d.skip {
				replacement = versioned(m.Path, d.version)
			}
			if replacement != old {
				if d.version == "" {
					res.Reverted++
				} else {
					res.Rewritten++
				}
			}
			b.WriteString(content[last:m.Start])
			b.WriteString(replacement)
			last = m.End
		}
		b.WriteString(content[last:])
		content = b.String()
	}

	res.Content = content
	res.Modified = content != original
	return res
}

// versioned returns path with its query replaced by ?v=version, or the bare
// path when version is empty.
func versioned(path, version string) string {
	if version == "" {
		return path
	}
	return path + "?" + VersionParam + "=" + version
}
