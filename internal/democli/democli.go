// Package democli holds helpers shared by the demo binaries.
package democli

import (
	"fmt"
	"os"

	"github.com/fastQM/rclmesh"
)

// ResolveQoS returns the named profile from a YAML file, or the default
// profile when no file is given.
func ResolveQoS(path, name string) (rclmesh.QoSProfile, error) {
	if path == "" {
		return rclmesh.DefaultQoS(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return rclmesh.QoSProfile{}, fmt.Errorf("open qos file: %w", err)
	}
	defer f.Close()
	profiles, err := rclmesh.LoadQoSProfiles(f)
	if err != nil {
		return rclmesh.QoSProfile{}, err
	}
	profile, ok := profiles[name]
	if !ok {
		return rclmesh.QoSProfile{}, fmt.Errorf("qos profile %q not found in %s", name, path)
	}
	return profile, nil
}
