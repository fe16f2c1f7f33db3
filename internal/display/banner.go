package display

import (
	"fmt"
	"io"

	"github.com/backmassage/vidopt/internal/term"
)

// PrintBanner writes the ASCII art banner and version, colored when the
// palette is active.
func PrintBanner(w io.Writer, version string) {
	fmt.Fprint(w, term.Colors.Banner)
	fmt.Fprint(w, `       _     _             _
__   _(_) __| | ___  _ __ | |_
\ \ / / |/ _`+"`"+` |/ _ \| '_ \| __|
 \ V /| | (_| | (_) | |_) | |_
  \_/ |_|\__,_|\___/| .__/ \__|
                    |_|
`)
	fmt.Fprint(w, term.Colors.Reset)
	fmt.Fprintf(w, "vidopt %s\n\n", version)
}
