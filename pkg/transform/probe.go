package transform

import "strings"

// Capability records whether an optional stage can run.
type Capability struct {
	Available bool
	Reason    string
}

const probeStylesheet = "a{color:rgb(0 0 0/50%)}"

// ProbeStyleTransform runs t once on a known stylesheet. A nil transformer, an
// error or an empty result marks the stage unavailable.
func ProbeStyleTransform(t StyleTransformer) Capability {
	if t == nil {
		return Capability{Reason: "no style transformer configured"}
	}
	out, err := t.Transform(probeStylesheet, "probe.css")
	if err != nil {
		return Capability{Reason: err.Error()}
	}
	if strings.TrimSpace(out.CSS) == "" {
		return Capability{Reason: "style transformer returned no output"}
	}
	return Capability{Available: true}
}
