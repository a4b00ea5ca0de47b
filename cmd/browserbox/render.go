// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"golang.org/x/term"

	"github.com/browserbox/browserbox/internal/issue"
)

// reportError writes the details fang does not show: the suggestions of an
// actionable error and, when the error points at the issue catalog, the
// rendered catalog entry. The error itself is still returned to fang.
func reportError(w io.Writer, err error, verbose bool) {
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		return
	}

	if ae.HasSuggestions() || verbose {
		fmt.Fprintln(w, ErrorStyle.Render(iconFail+" ")+ae.Format(verbose))
	}

	if ae.Issue == 0 {
		return
	}
	entry := issue.Get(ae.Issue)
	if entry == nil {
		return
	}
	rendered, renderErr := entry.Render(glamourStyle(w))
	if renderErr != nil {
		log.Warn("failed to render issue catalog entry", "issue", ae.Issue, "error", renderErr)
		return
	}
	fmt.Fprint(w, rendered)
}

// glamourStyle picks the dark style for terminals and plain text otherwise.
func glamourStyle(w io.Writer) string {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "dark"
	}
	return "notty"
}
