package negotiator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentcomm/comm-server/internal/model"
	"github.com/agentcomm/comm-server/internal/negotiator"
)

func TestNegotiate_PicksLowestSortedVersionFromIntersection(t *testing.T) {
	a := model.Capabilities{Protocols: map[string][]string{"chat_message": {"2.0.0", "1.0.0"}}}
	b := model.Capabilities{Protocols: map[string][]string{"chat_message": {"1.0.0", "2.0.0"}}}

	res := negotiator.Negotiate(a, b, nil)
	assert.Equal(t, "1.0.0", res.CommonProtocols["chat_message"])
	assert.True(t, res.Compatible)
}

func TestNegotiate_FeatureIntersection(t *testing.T) {
	a := model.Capabilities{Features: []string{"streaming", "point_to_point"}}
	b := model.Capabilities{Features: []string{"point_to_point", "broadcast"}}

	res := negotiator.Negotiate(a, b, nil)
	assert.Equal(t, []string{"point_to_point"}, res.FeatureIntersection)
	assert.Equal(t, []string{"streaming"}, res.UnsupportedFeaturesA)
	assert.Equal(t, []string{"broadcast"}, res.UnsupportedFeaturesB)
}

func TestNegotiate_RequiredProtocolMismatchIsIncompatible(t *testing.T) {
	a := model.Capabilities{Protocols: map[string][]string{"chat_message": {"1.0.0"}}}
	b := model.Capabilities{Protocols: map[string][]string{"chat_message": {"2.0.0"}}}

	res := negotiator.Negotiate(a, b, []negotiator.RequiredProtocol{{Name: "chat_message", Version: "1.0.0"}})
	assert.False(t, res.Compatible)
	assert.Len(t, res.Incompatibilities, 1)
}

func TestCompatibilityMatrix_CoversAllPairs(t *testing.T) {
	sessions := []model.Capabilities{{}, {}, {}}
	matrix := negotiator.CompatibilityMatrix(sessions)
	assert.Len(t, matrix, 3)
}
