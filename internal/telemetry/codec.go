// Fixed-width binary record codec
package telemetry

import (
	"encoding/binary"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
)

// PacketSize is the fixed record width in bytes:
// uint32 timestamp, six float32 fields, uint8 mode.
const PacketSize = 4 + 6*4 + 1

// ErrShortRecord is returned when a buffer is too small to hold one record.
var ErrShortRecord = errors.New("telemetry: short record")

// AppendPacket appends the big-endian encoding of p to dst.
func AppendPacket(dst []byte, p Packet) []byte {
	dst = binary.BigEndian.AppendUint32(dst, p.Timestamp)
	for _, f := range []float32{p.BatteryV, p.PanelI, p.TempC, p.GyroX, p.GyroY, p.GyroZ} {
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(f))
	}
	return append(dst, p.Mode)
}

// EncodePacket returns the PacketSize-byte encoding of p.
func EncodePacket(p Packet) []byte {
	return AppendPacket(make([]byte, 0, PacketSize), p)
}

// DecodePacket decodes one record from the start of b.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < PacketSize {
		return Packet{}, fmt.Errorf("%w: %d bytes, need %d", ErrShortRecord, len(b), PacketSize)
	}
	var p Packet
	p.Timestamp = binary.BigEndian.Uint32(b[0:4])
	floats := []*float32{&p.BatteryV, &p.PanelI, &p.TempC, &p.GyroX, &p.GyroY, &p.GyroZ}
	for i, fp := range floats {
		off := 4 + i*4
		*fp = math.Float32frombits(binary.BigEndian.Uint32(b[off : off+4]))
	}
	p.Mode = b[PacketSize-1]
	return p, nil
}

// WriteFile writes packets as consecutive fixed-width records with no
// header or footer framing. The file is rewritten from scratch.
func WriteFile(path string, packets []Packet) error {
	buf := make([]byte, 0, len(packets)*PacketSize)
	for _, p := range packets {
		buf = AppendPacket(buf, p)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write telemetry file: %w", err)
	}
	return nil
}

// ReadFile decodes a flat record file. A truncated trailing partial record
// is silently dropped; the decoder has no way to tell truncation from a
// clean end of file since the format carries no framing.
func ReadFile(path string) ([]Packet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read telemetry file: %w", err)
	}
	n := len(data) / PacketSize
	packets := make([]Packet, 0, n)
	for i := 0; i < n; i++ {
		p, err := DecodePacket(data[i*PacketSize:])
		if err != nil {
			return nil, err
		}
		packets = append(packets, p)
	}
	return packets, nil
}

// WriteCSV exports packets as CSV with a header row, matching the binary
// field order.
func WriteCSV(path string, packets []Packet) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"timestamp"}, FeatureNames...)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, p := range packets {
		rec := []string{
			strconv.FormatUint(uint64(p.Timestamp), 10),
			formatF32(p.BatteryV),
			formatF32(p.PanelI),
			formatF32(p.TempC),
			formatF32(p.GyroX),
			formatF32(p.GyroY),
			formatF32(p.GyroZ),
			strconv.Itoa(int(p.Mode)),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatF32(f float32) string {
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}
