package fleet

import (
	"encoding/json"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sensormesh/sensormesh/internal/model"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

var _ mqtt.Message = fakeMessage{}

func presentationMsg(t *testing.T, p model.Presentation) fakeMessage {
	t.Helper()
	b, err := json.Marshal(p)
	require.NoError(t, err)
	return fakeMessage{topic: model.PresentationTopic(p.NodeID), payload: b}
}

func reportMsg(t *testing.T, r model.Report) fakeMessage {
	t.Helper()
	b, err := json.Marshal(r)
	require.NoError(t, err)
	return fakeMessage{topic: model.ReportTopic(r.NodeID), payload: b}
}

func TestRegistryTracksPresentedChannels(t *testing.T) {
	r := NewRegistry(time.Minute, 0)

	msg := presentationMsg(t, model.Presentation{NodeID: "node-a", Channel: 1, Kind: model.KindTemperature})
	require.NoError(t, r.HandleMessage(msg.topic, msg))
	msg = presentationMsg(t, model.Presentation{NodeID: "node-a", Channel: 3, Kind: model.KindDoor})
	require.NoError(t, r.HandleMessage(msg.topic, msg))

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "node-a", snap[0].ID)
	assert.True(t, snap[0].Online)
	require.Len(t, snap[0].Channels, 2)
	assert.Equal(t, ChannelInfo{Channel: 1, Kind: "temperature"}, snap[0].Channels[0])
	assert.Equal(t, ChannelInfo{Channel: 3, Kind: "door"}, snap[0].Channels[1])
}

func TestRegistryReportsCountAsHeartbeat(t *testing.T) {
	r := NewRegistry(time.Minute, 0)

	msg := reportMsg(t, model.Report{NodeID: "node-b", Channel: 4, Kind: model.KindMotion, Value: 1})
	require.NoError(t, r.HandleMessage(msg.topic, msg))

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.True(t, snap[0].Online)
}

func TestRegistryMarksSilentNodesOffline(t *testing.T) {
	r := NewRegistry(time.Minute, 10*time.Second)

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }
	msg := reportMsg(t, model.Report{NodeID: "node-a", Channel: 1, Kind: model.KindTemperature})
	require.NoError(t, r.HandleMessage(msg.topic, msg))

	// Within TTL+grace: still online.
	r.now = func() time.Time { return base.Add(65 * time.Second) }
	assert.True(t, r.Snapshot()[0].Online)

	// Past TTL+grace: offline.
	r.now = func() time.Time { return base.Add(71 * time.Second) }
	assert.False(t, r.Snapshot()[0].Online)
}

func TestRegistryRejectsGarbage(t *testing.T) {
	r := NewRegistry(time.Minute, 0)

	err := r.HandleMessage("sensor/report/x", fakeMessage{topic: "sensor/report/x", payload: []byte("{oops")})
	assert.Error(t, err)
	assert.Empty(t, r.Snapshot())

	// Unknown topics are ignored, not errors.
	assert.NoError(t, r.HandleMessage("other/topic", fakeMessage{topic: "other/topic"}))
}

func TestSnapshotOrderedByNodeID(t *testing.T) {
	r := NewRegistry(time.Minute, 0)

	for _, id := range []string{"zeta", "alpha", "mid"} {
		msg := reportMsg(t, model.Report{NodeID: id, Channel: 1, Kind: model.KindTemperature})
		require.NoError(t, r.HandleMessage(msg.topic, msg))
	}

	snap := r.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "alpha", snap[0].ID)
	assert.Equal(t, "mid", snap[1].ID)
	assert.Equal(t, "zeta", snap[2].ID)
}
