// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/browserbox/browserbox/cmd/browserbox"

func main() {
	cmd.Execute()
}
