// SPDX-License-Identifier: MPL-2.0

package recipe

import (
	"fmt"
	"strings"
)

// GenerateCUE renders r as a browserbox.cue document that Parse reads back
// to an equal recipe.
func GenerateCUE(r *Recipe) string {
	var sb strings.Builder

	sb.WriteString("// browserbox recipe\n")
	sb.WriteString("// Steps run in order: base, system packages, workdir, manifest,\n")
	sb.WriteString("// install, source, env, launch.\n\n")

	fmt.Fprintf(&sb, "base_image: %q\n", r.BaseImage)

	sb.WriteString("\nsystem_packages: [")
	if len(r.SystemPackages) > 0 {
		sb.WriteString("\n")
		for _, pkg := range r.SystemPackages {
			fmt.Fprintf(&sb, "\t%q,\n", pkg)
		}
	}
	sb.WriteString("]\n")

	fmt.Fprintf(&sb, "\nworkdir:  %q\n", r.Workdir)
	fmt.Fprintf(&sb, "manifest: %q\n", r.Manifest)

	quoted := make([]string, len(r.Install))
	for i, arg := range r.Install {
		quoted[i] = fmt.Sprintf("%q", arg)
	}
	fmt.Fprintf(&sb, "install:  [%s]\n", strings.Join(quoted, ", "))

	sb.WriteString("\nenv: [")
	if len(r.Env) > 0 {
		sb.WriteString("\n")
		for _, e := range r.Env {
			fmt.Fprintf(&sb, "\t{name: %q, value: %q},\n", e.Name, e.Value)
		}
	}
	sb.WriteString("]\n")

	sb.WriteString("\nlaunch: {\n")
	fmt.Fprintf(&sb, "\tcommand:        %q\n", r.Launch.Command)
	fmt.Fprintf(&sb, "\tembed_launcher: %v\n", r.Launch.EmbedLauncher)
	sb.WriteString("}\n")

	sb.WriteString("\nbrowser: {\n")
	fmt.Fprintf(&sb, "\tengine: %q\n", r.Browser.Engine)
	fmt.Fprintf(&sb, "\tdriver: %q\n", r.Browser.Driver)
	sb.WriteString("}\n")

	return sb.String()
}
