// Package xerr holds the small set of panic-on-violation helpers shared by
// the engine's packages. Errors a caller is expected to handle live in
// joinerr; a panic here always means a programming error or a broken
// upstream invariant, never a recoverable condition.
package xerr

import "fmt"

// Assert panics with a formatted message if cond is false.
func Assert(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
