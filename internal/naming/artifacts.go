package naming

import (
	"path/filepath"
	"strings"

	"github.com/backmassage/vidopt/internal/config"
)

// Artifact name markers appended to the input stem.
const (
	MarkerRepaired  = "_repaired"
	MarkerReduced   = "_reduced"
	MarkerOptimized = "-optimized"
	MarkerFinal     = "-final"
)

// Artifacts are the files one job writes, in stage order. Final equals
// Optimized when no container conversion is needed.
type Artifacts struct {
	Repaired  string
	Reduced   string
	Optimized string
	Final     string
}

// ArtifactsFor derives the artifact paths for input. Artifacts go to
// outputDir, or next to the input when outputDir is empty. When cr is
// non-nil the stem is reserved through it so concurrent jobs never share
// intermediates.
//
//	<dir>/<stem>_repaired.mkv
//	<dir>/<stem>_reduced.mkv
//	<dir>/<stem>-optimized.mkv
//	<dir>/<stem>-final.<container>   (only when container != mkv)
func ArtifactsFor(input, outputDir string, final config.Container, cr *CollisionResolver) Artifacts {
	dir := outputDir
	if dir == "" {
		dir = filepath.Dir(input)
	}
	base := filepath.Base(input)
	stem := filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base)))
	if cr != nil {
		stem = cr.Resolve(input, stem)
	}

	work := "." + string(config.WorkingContainer)
	a := Artifacts{
		Repaired:  stem + MarkerRepaired + work,
		Reduced:   stem + MarkerReduced + work,
		Optimized: stem + MarkerOptimized + work,
	}
	a.Final = a.Optimized
	if final != config.WorkingContainer {
		a.Final = stem + MarkerFinal + "." + string(final)
	}
	return a
}

// Intermediates returns every artifact except the final one.
func (a Artifacts) Intermediates() []string {
	out := []string{a.Repaired, a.Reduced}
	if a.Optimized != a.Final {
		out = append(out, a.Optimized)
	}
	return out
}

// IsArtifact reports whether path is a file this tool wrote, judged by the
// marker at the end of its stem. Such files are never processed again.
func IsArtifact(path string) bool {
	base := filepath.Base(path)
	stem := strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
	for _, m := range []string{MarkerOptimized, MarkerFinal, MarkerRepaired, MarkerReduced} {
		if strings.HasSuffix(stem, m) {
			return true
		}
	}
	return false
}
