// Telemetry packet type and mode table
package telemetry

// Operating mode codes carried in the packet's mode byte.
const (
	ModeIdle     uint8 = 0
	ModeNominal  uint8 = 1
	ModeSafe     uint8 = 2
	ModeManeuver uint8 = 3
)

var modeNames = map[uint8]string{
	ModeIdle:     "IDLE",
	ModeNominal:  "NOMINAL",
	ModeSafe:     "SAFE",
	ModeManeuver: "MANEUVER",
}

// ModeName returns the human-readable name for a mode code.
func ModeName(m uint8) string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "UNKNOWN"
}

// Packet is one fixed-format CubeSat health snapshot. The wire layout is
// big-endian with fields in declaration order (see codec.go); changing the
// field set or order breaks the binary format.
type Packet struct {
	Timestamp uint32  `json:"timestamp"` // unix seconds
	BatteryV  float32 `json:"battery_v"` // volts
	PanelI    float32 `json:"panel_i"`   // amps
	TempC     float32 `json:"temp_c"`    // degrees C
	GyroX     float32 `json:"gyro_x"`    // deg/s
	GyroY     float32 `json:"gyro_y"`
	GyroZ     float32 `json:"gyro_z"`
	Mode      uint8   `json:"mode"`
}

// FeatureNames lists the model feature columns in vector order.
var FeatureNames = []string{
	"battery_v",
	"panel_i",
	"temp_c",
	"gyro_x",
	"gyro_y",
	"gyro_z",
	"mode",
}

// Features returns the packet as a feature vector for the anomaly model,
// ordered as FeatureNames.
func (p Packet) Features() []float64 {
	return []float64{
		float64(p.BatteryV),
		float64(p.PanelI),
		float64(p.TempC),
		float64(p.GyroX),
		float64(p.GyroY),
		float64(p.GyroZ),
		float64(p.Mode),
	}
}
