package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShouldProcessOnceWithinTTL(t *testing.T) {
	d := New(time.Minute, 100)

	assert.True(t, d.ShouldProcess("msg-1"))
	assert.False(t, d.ShouldProcess("msg-1"))
	assert.True(t, d.ShouldProcess("msg-2"))
}

func TestEmptyIDNeverDeduplicated(t *testing.T) {
	d := New(time.Minute, 100)

	assert.True(t, d.ShouldProcess(""))
	assert.True(t, d.ShouldProcess(""))
}

func TestExpiredEntryProcessedAgain(t *testing.T) {
	d := New(10*time.Millisecond, 100)

	assert.True(t, d.ShouldProcess("msg-1"))
	time.Sleep(20 * time.Millisecond)
	assert.True(t, d.ShouldProcess("msg-1"))
}

func TestDefaultsApplied(t *testing.T) {
	d := New(0, 0)

	assert.True(t, d.ShouldProcess("msg-1"))
	assert.False(t, d.ShouldProcess("msg-1"))
}
