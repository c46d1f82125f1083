//go:build !porbydebug

package porby

// isDebugBuild reports whether this binary was built with the
// porbydebug tag. Release builds (the default) report false.
func isDebugBuild() bool { return false }
