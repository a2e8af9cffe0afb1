// Package protocol provides the built-in protocol adapters, the registry
// that resolves adapters by name, and loading of external adapter binaries.
package protocol

import (
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/jmylchreest/plugsync/pkg/plugin"
)

// MinCompatibleVersion is the oldest adapter protocol version plugsync can work with.
const MinCompatibleVersion = "0.1.0"

// Parse parses a strict "MAJOR.MINOR.PATCH" version.
func Parse(version string) (*semver.Version, error) {
	v, err := semver.StrictNewVersion(version)
	if err != nil {
		return nil, fmt.Errorf("invalid version format: %s (expected MAJOR.MINOR.PATCH): %w", version, err)
	}
	return v, nil
}

// IsCompatible checks if an adapter's protocol version can be used.
// Rules:
// - Major version must match exactly.
// - The version must not be older than MinCompatibleVersion.
// - Higher minor and patch versions are accepted.
func IsCompatible(adapterVersion string) (bool, error) {
	v, err := Parse(adapterVersion)
	if err != nil {
		return false, fmt.Errorf("failed to parse adapter version: %w", err)
	}

	current := semver.MustParse(plugin.ProtocolVersion)
	minVersion := semver.MustParse(MinCompatibleVersion)

	if v.Major() != current.Major() {
		return false, fmt.Errorf(
			"incompatible major version: adapter is %s, plugsync requires %d.x.x",
			v, current.Major(),
		)
	}

	if v.LessThan(minVersion) {
		return false, fmt.Errorf(
			"adapter version %s is too old, minimum required is %s",
			v, MinCompatibleVersion,
		)
	}

	return true, nil
}
