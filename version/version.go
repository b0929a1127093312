// Package version exposes build identity for the cmd front-ends.
package version

var (
	name    = "auricula"
	version = "0.1.0"
	commit  = "unknown"
)

// Name returns the program name.
func Name() string {
	return name
}

// Version returns the semantic version, overridable at link time.
func Version() string {
	return version
}

// Commit returns the VCS commit, overridable at link time.
func Commit() string {
	return commit
}
