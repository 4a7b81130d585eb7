package telemetry

import (
	"math/rand"
	"time"
)

// Fault scenario names.
const (
	ScenarioPowerDrop     = "power_drop"
	ScenarioThermalSpike  = "thermal_spike"
	ScenarioAttitudeIssue = "attitude_issue"
)

// DefaultScenarios are the fault scenarios sampled when none are given.
var DefaultScenarios = []string{
	ScenarioPowerDrop,
	ScenarioThermalSpike,
	ScenarioAttitudeIssue,
}

// Generator produces synthetic CubeSat health packets with occasional
// injected faults.
type Generator struct {
	faultRate float64
	scenarios []string
	rng       *rand.Rand
	now       func() time.Time
}

// NewGenerator creates a generator. faultRate is the per-packet probability
// of a fault scenario being applied. seed 0 selects a time-based seed.
func NewGenerator(faultRate float64, seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		faultRate: faultRate,
		scenarios: DefaultScenarios,
		rng:       rand.New(rand.NewSource(seed)),
		now:       time.Now,
	}
}

// Generate produces n packets timestamped one second apart starting at the
// current time.
func (g *Generator) Generate(n int) []Packet {
	start := uint32(g.now().Unix())
	packets := make([]Packet, 0, n)
	for i := 0; i < n; i++ {
		p := g.normalPacket(start + uint32(i))
		if g.rng.Float64() < g.faultRate {
			scenario := g.scenarios[g.rng.Intn(len(g.scenarios))]
			p = g.injectFault(p, scenario)
		}
		packets = append(packets, p)
	}
	return packets
}

// normalPacket samples a healthy telemetry snapshot around nominal values.
func (g *Generator) normalPacket(ts uint32) Packet {
	return Packet{
		Timestamp: ts,
		BatteryV:  float32(g.rng.NormFloat64()*0.2 + 7.4),
		PanelI:    float32(max(0, g.rng.NormFloat64()*0.3+1.2)),
		TempC:     float32(g.rng.NormFloat64()*5.0 + 35.0),
		GyroX:     float32(g.rng.NormFloat64() * 0.02),
		GyroY:     float32(g.rng.NormFloat64() * 0.02),
		GyroZ:     float32(g.rng.NormFloat64() * 0.02),
		Mode:      g.sampleMode(),
	}
}

// sampleMode draws a mode code weighted 10/70/10/10 across
// IDLE/NOMINAL/SAFE/MANEUVER.
func (g *Generator) sampleMode() uint8 {
	r := g.rng.Float64()
	switch {
	case r < 0.1:
		return ModeIdle
	case r < 0.8:
		return ModeNominal
	case r < 0.9:
		return ModeSafe
	default:
		return ModeManeuver
	}
}

// injectFault perturbs a packet according to a fault scenario.
func (g *Generator) injectFault(p Packet, scenario string) Packet {
	switch scenario {
	case ScenarioPowerDrop:
		p.BatteryV -= float32(g.uniform(1.0, 2.5))
		p.PanelI += float32(g.uniform(0.5, 1.0))
		p.Mode = ModeSafe
	case ScenarioThermalSpike:
		p.TempC += float32(g.uniform(15.0, 30.0))
	case ScenarioAttitudeIssue:
		p.GyroX += float32(g.uniform(-0.5, 0.5))
		p.GyroY += float32(g.uniform(-0.5, 0.5))
		p.GyroZ += float32(g.uniform(-0.5, 0.5))
		p.Mode = ModeManeuver
	}
	return p
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}
