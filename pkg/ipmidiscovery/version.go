// Package ipmidiscovery version information.
package ipmidiscovery

// Version information for the ipmidiscovery library.
const (
	// Version is the semantic version of the library.
	Version = "0.2.0"

	// VersionMajor is the major version number.
	VersionMajor = 0

	// VersionMinor is the minor version number.
	VersionMinor = 2

	// VersionPatch is the patch version number.
	VersionPatch = 0
)

// VersionInfo returns the full version string with library name.
func VersionInfo() string {
	return "go-ipmidiscovery v" + Version
}
