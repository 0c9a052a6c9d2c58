package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQoSPerTopicClass(t *testing.T) {
	assert.Equal(t, byte(0), qosFor("sensor/report/node-a"))
	assert.Equal(t, byte(0), qosFor("sensor/presentation/node-a"))
	assert.Equal(t, byte(1), qosFor("node/command/node-a"))
	assert.Equal(t, byte(1), qosFor("node/config"))
	assert.Equal(t, byte(0), qosFor(""))
}
