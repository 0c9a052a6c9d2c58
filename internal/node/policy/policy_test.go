package policy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sensormesh/sensormesh/internal/model"
)

func testConfig() Config {
	return Config{
		ForceInterval:   30,
		BatteryInterval: 60,
		HumidityWindow:  2,
		Temperature:     ChannelConfig{Enabled: true, ID: 1, Threshold: 0.5},
		Humidity:        ChannelConfig{Enabled: true, ID: 2, Threshold: 2.0},
		Door:            ChannelConfig{Enabled: true, ID: 3},
		Motion:          ChannelConfig{Enabled: true, ID: 4},
		Battery:         ChannelConfig{Enabled: true, ID: 5},
	}
}

func steadySample() Sample {
	return Sample{Temperature: 21.0, Humidity: 50.0, Door: false, Motion: false, Battery: 87}
}

func decisionsFor(ds []Decision, ch model.ChannelID) []Decision {
	var out []Decision
	for _, d := range ds {
		if d.Channel == ch {
			out = append(out, d)
		}
	}
	return out
}

func TestFirstCycleReportsEverything(t *testing.T) {
	e := NewEngine(testConfig())

	ds := e.RunCycle(steadySample())

	// Sentinel state: every enabled channel reports. Battery is the
	// exception, its own counter has not elapsed yet.
	chans := map[model.ChannelID]bool{}
	for _, d := range ds {
		chans[d.Channel] = true
		assert.False(t, d.Forced)
	}
	assert.True(t, chans[1])
	assert.True(t, chans[2])
	assert.True(t, chans[3])
	assert.True(t, chans[4])
	assert.False(t, chans[5])
}

func TestIdenticalReadingsTransmitOnce(t *testing.T) {
	e := NewEngine(testConfig())
	s := steadySample()

	first := e.RunCycle(s)
	require.NotEmpty(t, first)

	// 28 more identical cycles stay below the force interval: silence.
	for i := 0; i < 28; i++ {
		ds := e.RunCycle(s)
		assert.Empty(t, ds, "cycle %d", i+2)
	}
}

func TestForcedResyncOnCycle30(t *testing.T) {
	e := NewEngine(testConfig())
	s := steadySample()

	total := 0
	var forced []Decision
	for i := 1; i <= 30; i++ {
		ds := e.RunCycle(s)
		total += len(ds)
		if i == 30 {
			forced = ds
		}
	}

	// Cycle 1 reports four channels (battery not yet due), cycles 2..29
	// nothing, cycle 30 forces a full resync of all five.
	require.NotEmpty(t, forced)
	for _, d := range forced {
		assert.True(t, d.Forced)
	}
	assert.Len(t, decisionsFor(forced, 1), 1)
	assert.Len(t, decisionsFor(forced, 2), 1)
	assert.Len(t, decisionsFor(forced, 5), 1)
	assert.Equal(t, 9, total)
}

func TestMeasureCountResetsOnlyOnForcedCycles(t *testing.T) {
	e := NewEngine(testConfig())
	s := steadySample()

	prev := 0
	for i := 1; i <= 75; i++ {
		e.RunCycle(s)
		mc := e.MeasureCount()
		if mc == 0 {
			assert.Equal(t, 0, i%30, "reset on non-forced cycle %d", i)
		} else {
			assert.Equal(t, prev+1, mc)
		}
		prev = mc
	}
}

func TestThresholdTransmissionDoesNotResetCounter(t *testing.T) {
	e := NewEngine(testConfig())
	s := steadySample()

	e.RunCycle(s)
	before := e.MeasureCount()

	s.Temperature += 3.0 // well beyond threshold
	ds := e.RunCycle(s)
	require.Len(t, decisionsFor(ds, 1), 1)
	assert.Equal(t, before+1, e.MeasureCount())
}

func TestAnalogThresholdHysteresis(t *testing.T) {
	e := NewEngine(testConfig())
	s := steadySample()
	e.RunCycle(s)

	// Within threshold: no report.
	s.Temperature = 21.4
	assert.Empty(t, decisionsFor(e.RunCycle(s), 1))

	// Beyond threshold relative to the last transmitted value (21.0).
	s.Temperature = 21.6
	ds := decisionsFor(e.RunCycle(s), 1)
	require.Len(t, ds, 1)
	assert.InDelta(t, 21.6, ds[0].Value, 1e-9)

	// Drift compares against 21.6 now, not the original 21.0.
	s.Temperature = 21.2
	assert.Empty(t, decisionsFor(e.RunCycle(s), 1))
}

func TestDoorTogglesReportEachChange(t *testing.T) {
	e := NewEngine(testConfig())
	s := steadySample()

	s.Door = true
	e.RunCycle(s) // initial report, door open

	s.Door = false
	ds1 := decisionsFor(e.RunCycle(s), 3)
	s.Door = true
	ds2 := decisionsFor(e.RunCycle(s), 3)
	s.Door = true
	ds3 := decisionsFor(e.RunCycle(s), 3)

	// open -> closed -> open within three cycles: two real changes,
	// two reports, none for the repeated final state.
	require.Len(t, ds1, 1)
	assert.Equal(t, 0.0, ds1[0].Value)
	require.Len(t, ds2, 1)
	assert.Equal(t, 1.0, ds2[0].Value)
	assert.Empty(t, ds3)
}

func TestNaNReadingFailsOpen(t *testing.T) {
	cfg := testConfig()
	cfg.HumidityWindow = 1 // keep the NaN from lingering in the average
	e := NewEngine(cfg)
	s := steadySample()
	e.RunCycle(s)

	s.Temperature = math.NaN()
	s.Humidity = math.NaN()
	ds := e.RunCycle(s)
	assert.Len(t, decisionsFor(ds, 1), 1)
	assert.Len(t, decisionsFor(ds, 2), 1)

	// The NaN became the last transmitted value; the next valid reading
	// is indeterminate against it and reports again.
	s = steadySample()
	ds = e.RunCycle(s)
	assert.Len(t, decisionsFor(ds, 1), 1)
}

func TestHumidityComparedAgainstWindowAverage(t *testing.T) {
	e := NewEngine(testConfig())
	s := steadySample()

	s.Humidity = 50
	e.RunCycle(s) // transmits avg(50) = 50

	// Raw jumps to 54 but the window average is 52, within threshold 2.
	s.Humidity = 54
	assert.Empty(t, decisionsFor(e.RunCycle(s), 2))

	// Window now averages 54: delta 4 > 2, report.
	ds := decisionsFor(e.RunCycle(s), 2)
	require.Len(t, ds, 1)
	assert.InDelta(t, 54, ds[0].Value, 1e-9)
}

func TestBatteryOwnCadence(t *testing.T) {
	cfg := testConfig()
	cfg.ForceInterval = 1000 // keep forced resync out of the way
	cfg.BatteryInterval = 60
	e := NewEngine(cfg)
	s := steadySample()

	batteryReports := 0
	for i := 1; i <= 120; i++ {
		ds := e.RunCycle(s)
		if bs := decisionsFor(ds, 5); len(bs) > 0 {
			batteryReports += len(bs)
			assert.Equal(t, 0, i%60, "battery reported off-cadence on cycle %d", i)
		}
	}
	assert.Equal(t, 2, batteryReports)
}

func TestBatteryFlushedByForcedCycle(t *testing.T) {
	e := NewEngine(testConfig())
	s := steadySample()

	e.RunCycle(s) // initial: battery not yet due (counter 1 of 60)

	e.ForceNext()
	ds := e.RunCycle(s)
	bs := decisionsFor(ds, 5)
	require.Len(t, bs, 1)
	assert.True(t, bs[0].Forced)
}

func TestForceNextResetsMeasureCount(t *testing.T) {
	e := NewEngine(testConfig())
	s := steadySample()

	for i := 0; i < 5; i++ {
		e.RunCycle(s)
	}
	assert.Equal(t, 5, e.MeasureCount())

	e.ForceNext()
	e.RunCycle(s)
	assert.Equal(t, 0, e.MeasureCount())
}

func TestDisabledChannelsNeverReport(t *testing.T) {
	cfg := testConfig()
	cfg.Temperature.Enabled = false
	cfg.Humidity.Enabled = false
	cfg.Battery.Enabled = false
	e := NewEngine(cfg)
	s := steadySample()

	ds := e.RunCycle(s)
	assert.Empty(t, decisionsFor(ds, 1))
	assert.Empty(t, decisionsFor(ds, 2))
	assert.Empty(t, decisionsFor(ds, 5))
	assert.Len(t, decisionsFor(ds, 3), 1)
	assert.Len(t, decisionsFor(ds, 4), 1)
}

func TestEvaluationOrderIsStable(t *testing.T) {
	e := NewEngine(testConfig())
	ds := e.RunCycle(steadySample())

	require.Len(t, ds, 4)
	order := []model.Kind{
		model.KindTemperature, model.KindHumidity,
		model.KindDoor, model.KindMotion,
	}
	for i, d := range ds {
		assert.Equal(t, order[i], d.Kind)
	}
}
