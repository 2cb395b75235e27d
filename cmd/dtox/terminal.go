// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"io"

	"golang.org/x/term"
)

type fdHolder interface {
	Fd() uintptr
}

// isTerminal reports whether both in and out are attached to a terminal. Jobs
// only get a TTY and forwarded stdin when this holds.
func isTerminal(in io.Reader, out io.Writer) bool {
	inFd, ok := in.(fdHolder)
	if !ok {
		return false
	}
	outFd, ok := out.(fdHolder)
	if !ok {
		return false
	}
	return term.IsTerminal(int(inFd.Fd())) && term.IsTerminal(int(outFd.Fd()))
}
