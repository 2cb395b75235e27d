// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// ActionableError carries the failed operation, the resource involved, and
// remediation hints. The Issue catalogue holds longer Markdown help cards for
// the failure classes users hit most often (missing engine, missing image,
// incomplete cache merge), rendered with glamour.
package issue
