package hub_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"github.com/agentcomm/comm-server/internal/hub"
)

func TestIPThrottle_AllowsBurstThenBlocks(t *testing.T) {
	th := hub.NewIPThrottle(rate.Limit(0), 2)

	assert.True(t, th.Allow("1.2.3.4"))
	assert.True(t, th.Allow("1.2.3.4"))
	assert.False(t, th.Allow("1.2.3.4"))
}

func TestIPThrottle_TracksEachIPIndependently(t *testing.T) {
	th := hub.NewIPThrottle(rate.Limit(0), 1)

	assert.True(t, th.Allow("1.1.1.1"))
	assert.True(t, th.Allow("2.2.2.2"))
	assert.False(t, th.Allow("1.1.1.1"))
}
