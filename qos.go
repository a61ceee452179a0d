package rclmesh

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/fastQM/rclmesh/rmw"
)

// QoS policy enumerations. These mirror the middleware's policies one to one;
// no client-layer logic branches on the values.

type HistoryPolicy int

const (
	HistorySystemDefault HistoryPolicy = iota
	// HistoryKeepLast stores up to Depth samples per endpoint.
	HistoryKeepLast
	// HistoryKeepAll stores all samples, subject to middleware resource limits.
	HistoryKeepAll
)

type ReliabilityPolicy int

const (
	ReliabilitySystemDefault ReliabilityPolicy = iota
	// ReliabilityReliable guarantees delivery, possibly retrying.
	ReliabilityReliable
	// ReliabilityBestEffort attempts delivery but may lose samples.
	ReliabilityBestEffort
)

type DurabilityPolicy int

const (
	DurabilitySystemDefault DurabilityPolicy = iota
	// DurabilityTransientLocal makes the publisher persist samples for
	// late-joining subscriptions.
	DurabilityTransientLocal
	DurabilityVolatile
)

// QoSProfile is the flat quality-of-service configuration attached to
// publishers and subscriptions.
type QoSProfile struct {
	History                   HistoryPolicy
	Depth                     int
	Reliability               ReliabilityPolicy
	Durability                DurabilityPolicy
	AvoidNamespaceConventions bool
}

// toRMW translates the profile field-for-field into the middleware structure.
func (p QoSProfile) toRMW() rmw.QoSProfile {
	return rmw.QoSProfile{
		History:                   rmw.HistoryPolicy(p.History),
		Depth:                     p.Depth,
		Reliability:               rmw.ReliabilityPolicy(p.Reliability),
		Durability:                rmw.DurabilityPolicy(p.Durability),
		AvoidNamespaceConventions: p.AvoidNamespaceConventions,
	}
}

// DefaultQoS is the profile used by most topics: keep the last 10 samples,
// reliable, volatile.
func DefaultQoS() QoSProfile {
	return QoSProfile{History: HistoryKeepLast, Depth: 10, Reliability: ReliabilityReliable, Durability: DurabilityVolatile}
}

// SensorDataQoS favors fresh samples over complete delivery.
func SensorDataQoS() QoSProfile {
	return QoSProfile{History: HistoryKeepLast, Depth: 5, Reliability: ReliabilityBestEffort, Durability: DurabilityVolatile}
}

// ServicesQoS matches DefaultQoS; kept separate so service-style topics can
// diverge without touching callers.
func ServicesQoS() QoSProfile {
	return QoSProfile{History: HistoryKeepLast, Depth: 10, Reliability: ReliabilityReliable, Durability: DurabilityVolatile}
}

// ParametersQoS uses a deep queue so bursts of requests are not lost.
func ParametersQoS() QoSProfile {
	return QoSProfile{History: HistoryKeepLast, Depth: 1000, Reliability: ReliabilityReliable, Durability: DurabilityVolatile}
}

// ParameterEventsQoS keeps every sample.
func ParameterEventsQoS() QoSProfile {
	return QoSProfile{History: HistoryKeepAll, Depth: 1000, Reliability: ReliabilityReliable, Durability: DurabilityVolatile}
}

// SystemDefaultQoS defers every policy to the middleware.
func SystemDefaultQoS() QoSProfile {
	return QoSProfile{}
}

type qosProfileYAML struct {
	History                   string `yaml:"history"`
	Depth                     int    `yaml:"depth"`
	Reliability               string `yaml:"reliability"`
	Durability                string `yaml:"durability"`
	AvoidNamespaceConventions bool   `yaml:"avoid_namespace_conventions"`
}

// LoadQoSProfiles reads named QoS profiles from YAML of the form:
//
//	chatter:
//	  history: keep_last
//	  depth: 10
//	  reliability: reliable
//	  durability: volatile
//
// Unset policies default to system_default and depth 0.
func LoadQoSProfiles(r io.Reader) (map[string]QoSProfile, error) {
	var raw map[string]qosProfileYAML
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("rclmesh: parse qos profiles: %w", err)
	}
	out := make(map[string]QoSProfile, len(raw))
	for name, p := range raw {
		profile := QoSProfile{Depth: p.Depth, AvoidNamespaceConventions: p.AvoidNamespaceConventions}
		var err error
		if profile.History, err = parseHistory(p.History); err != nil {
			return nil, fmt.Errorf("rclmesh: profile %q: %w", name, err)
		}
		if profile.Reliability, err = parseReliability(p.Reliability); err != nil {
			return nil, fmt.Errorf("rclmesh: profile %q: %w", name, err)
		}
		if profile.Durability, err = parseDurability(p.Durability); err != nil {
			return nil, fmt.Errorf("rclmesh: profile %q: %w", name, err)
		}
		out[name] = profile
	}
	return out, nil
}

func parseHistory(s string) (HistoryPolicy, error) {
	switch s {
	case "", "system_default":
		return HistorySystemDefault, nil
	case "keep_last":
		return HistoryKeepLast, nil
	case "keep_all":
		return HistoryKeepAll, nil
	}
	return 0, fmt.Errorf("unknown history policy %q", s)
}

func parseReliability(s string) (ReliabilityPolicy, error) {
	switch s {
	case "", "system_default":
		return ReliabilitySystemDefault, nil
	case "reliable":
		return ReliabilityReliable, nil
	case "best_effort":
		return ReliabilityBestEffort, nil
	}
	return 0, fmt.Errorf("unknown reliability policy %q", s)
}

func parseDurability(s string) (DurabilityPolicy, error) {
	switch s {
	case "", "system_default":
		return DurabilitySystemDefault, nil
	case "transient_local":
		return DurabilityTransientLocal, nil
	case "volatile":
		return DurabilityVolatile, nil
	}
	return 0, fmt.Errorf("unknown durability policy %q", s)
}
