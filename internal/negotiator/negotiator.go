// Package negotiator implements the Capability Negotiator (spec §4.5): a
// stateless comparison of two sessions' declared protocol versions and
// features. Grounded on the Protocol Registry's validation style
// (small pure functions over model types, no storage dependency of its own).
package negotiator

import (
	"sort"

	"github.com/agentcomm/comm-server/internal/model"
)

// RequiredProtocol names a (name, version) pair a caller requires to be in
// the negotiated common set.
type RequiredProtocol struct {
	Name    string
	Version string
}

// Incompatibility records a required protocol that the two sessions could
// not agree on.
type Incompatibility struct {
	Name       string
	Version    string
	Suggestion string
}

// Result is the outcome of Negotiate.
type Result struct {
	Compatible           bool
	CommonProtocols      map[string]string // protocol name -> agreed version
	FeatureIntersection  []string
	UnsupportedFeaturesA []string
	UnsupportedFeaturesB []string
	Incompatibilities    []Incompatibility
}

// Negotiate computes the protocol-version and feature intersection between
// two sessions' declared capabilities.
//
// Version selection deliberately picks the lowest version in the string
// intersection via sorted order, not a semver-max comparison — this is a
// known placeholder carried over unchanged rather than "fixed" to
// highest-compatible, since nothing in the source this was derived from
// ever did semver comparison.
func Negotiate(a, b model.Capabilities, required []RequiredProtocol) Result {
	common := commonProtocols(a.Protocols, b.Protocols)
	features := intersect(a.Features, b.Features)

	res := Result{
		CommonProtocols:      common,
		FeatureIntersection:  features,
		UnsupportedFeaturesA: difference(a.Features, b.Features),
		UnsupportedFeaturesB: difference(b.Features, a.Features),
	}

	for _, req := range required {
		agreed, ok := common[req.Name]
		if ok && agreed == req.Version {
			continue
		}
		inc := Incompatibility{Name: req.Name, Version: req.Version}
		if ok {
			inc.Suggestion = "common version available: " + agreed
		}
		res.Incompatibilities = append(res.Incompatibilities, inc)
	}

	res.Compatible = len(res.Incompatibilities) == 0 && (required == nil || len(common) > 0)
	return res
}

// PairResult is one entry of a CompatibilityMatrix: the Negotiate result
// between sessions at indices I and J (I < J) of the input slice.
type PairResult struct {
	I, J   int
	Result Result
}

// CompatibilityMatrix returns Negotiate results for every i<j pair in
// sessions, in input order.
func CompatibilityMatrix(sessions []model.Capabilities) []PairResult {
	var out []PairResult
	for i := 0; i < len(sessions); i++ {
		for j := i + 1; j < len(sessions); j++ {
			out = append(out, PairResult{I: i, J: j, Result: Negotiate(sessions[i], sessions[j], nil)})
		}
	}
	return out
}

func commonProtocols(a, b map[string][]string) map[string]string {
	out := make(map[string]string)
	for name, aVersions := range a {
		bVersions, ok := b[name]
		if !ok {
			continue
		}
		shared := intersect(aVersions, bVersions)
		if len(shared) == 0 {
			continue
		}
		sort.Strings(shared)
		out[name] = shared[0]
	}
	return out
}

func intersect(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, v := range b {
		set[v] = true
	}
	var out []string
	for _, v := range a {
		if set[v] {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func difference(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, v := range b {
		set[v] = true
	}
	var out []string
	for _, v := range a {
		if !set[v] {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
