package domain

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Identity Errors
// =============================================================================

var (
	ErrMalformedIdentity = errors.New("malformed deployment identifier")
)

const (
	identitySeparator = ":"
	minSegments       = 3
	maxSegments       = 5
)

// =============================================================================
// Deployment Identity
// =============================================================================

// DeploymentIdentity identifies a deployment unit.
// Wire format: groupId:artifactId:version[:kbaseName[:ksessionName]]
type DeploymentIdentity struct {
	GroupID      string `json:"group_id" yaml:"group_id"`
	ArtifactID   string `json:"artifact_id" yaml:"artifact_id"`
	Version      string `json:"version" yaml:"version"`
	KBaseName    string `json:"kbase_name,omitempty" yaml:"kbase_name,omitempty"`
	KSessionName string `json:"ksession_name,omitempty" yaml:"ksession_name,omitempty"`
}

// ParseIdentity parses the colon separated identifier.
//
// Example:
//
//	ParseIdentity("com.acme:rules:1.0")            // 3 segments
//	ParseIdentity("com.acme:rules:1.0:kbase:ksess") // 5 segments
func ParseIdentity(raw string) (DeploymentIdentity, error) {
	segments := strings.Split(raw, identitySeparator)
	if len(segments) < minSegments || len(segments) > maxSegments {
		return DeploymentIdentity{}, fmt.Errorf("%w: %q has %d segments, expected %d to %d",
			ErrMalformedIdentity, raw, len(segments), minSegments, maxSegments)
	}
	for i, s := range segments {
		if s == "" {
			return DeploymentIdentity{}, fmt.Errorf("%w: %q has an empty segment at position %d",
				ErrMalformedIdentity, raw, i+1)
		}
	}

	id := DeploymentIdentity{
		GroupID:    segments[0],
		ArtifactID: segments[1],
		Version:    segments[2],
	}
	if len(segments) > 3 {
		id.KBaseName = segments[3]
	}
	if len(segments) > 4 {
		id.KSessionName = segments[4]
	}
	return id, nil
}

// MustParseIdentity is ParseIdentity for identifiers known to be valid.
// It panics on malformed input.
func MustParseIdentity(raw string) DeploymentIdentity {
	id, err := ParseIdentity(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the canonical wire form. It is the inverse of ParseIdentity.
func (id DeploymentIdentity) String() string {
	segments := []string{id.GroupID, id.ArtifactID, id.Version}
	if id.KBaseName != "" {
		segments = append(segments, id.KBaseName)
		if id.KSessionName != "" {
			segments = append(segments, id.KSessionName)
		}
	}
	return strings.Join(segments, identitySeparator)
}

// Validate checks the structural invariants of an identity built by hand.
func (id DeploymentIdentity) Validate() error {
	if id.GroupID == "" || id.ArtifactID == "" || id.Version == "" {
		return fmt.Errorf("%w: group, artifact and version are required", ErrMalformedIdentity)
	}
	if id.KSessionName != "" && id.KBaseName == "" {
		return fmt.Errorf("%w: ksession name requires a kbase name", ErrMalformedIdentity)
	}
	for _, s := range []string{id.GroupID, id.ArtifactID, id.Version, id.KBaseName, id.KSessionName} {
		if strings.Contains(s, identitySeparator) {
			return fmt.Errorf("%w: segment %q contains %q", ErrMalformedIdentity, s, identitySeparator)
		}
	}
	return nil
}

// Equal compares identities by their canonical form.
func (id DeploymentIdentity) Equal(other DeploymentIdentity) bool {
	return id.String() == other.String()
}
