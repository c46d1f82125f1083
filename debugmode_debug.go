//go:build porbydebug

package porby

// isDebugBuild reports whether this binary was built with the
// porbydebug tag.
func isDebugBuild() bool { return true }
