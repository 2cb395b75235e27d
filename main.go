// SPDX-License-Identifier: MPL-2.0

package main

import "github.com/sthagen/pantsbuild-pex/cmd/dtox"

func main() {
	cmd.Execute()
}
