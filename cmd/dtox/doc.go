// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the dtox command line.
//
// The root command is executed through fang. Every subcommand receives the
// App composition root, loads the project configuration through its
// ConfigProvider, and delegates to the orchestrator. Errors are rendered here
// and turned into an ExitError so main can exit with the right status.
package cmd
