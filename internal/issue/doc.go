// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with operator-friendly messages.
//
// ActionableError carries the failed operation, the resource involved, and
// remediation hints. The issue catalog holds longer Markdown guidance, rendered
// with glamour, for the failures an operator is most likely to hit.
package issue
