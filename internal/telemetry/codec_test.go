package telemetry

import (
	"os"
	"path/filepath"
	"testing"
)

func samplePackets(n int) []Packet {
	packets := make([]Packet, 0, n)
	for i := 0; i < n; i++ {
		packets = append(packets, Packet{
			Timestamp: 1700000000 + uint32(i),
			BatteryV:  7.4 + float32(i)*0.01,
			PanelI:    1.2,
			TempC:     35.5,
			GyroX:     -0.015,
			GyroY:     0.02,
			GyroZ:     0.001,
			Mode:      uint8(i % 4),
		})
	}
	return packets
}

func TestRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 3, 100} {
		path := filepath.Join(t.TempDir(), "packets.bin")
		want := samplePackets(n)

		if err := WriteFile(path, want); err != nil {
			t.Fatalf("WriteFile(n=%d): %v", n, err)
		}
		got, err := ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile(n=%d): %v", n, err)
		}
		if len(got) != n {
			t.Fatalf("ReadFile(n=%d) returned %d packets", n, len(got))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("packet %d: got %+v, want %+v", i, got[i], want[i])
			}
		}
	}
}

func TestEncodedSize(t *testing.T) {
	b := EncodePacket(Packet{})
	if len(b) != PacketSize {
		t.Fatalf("encoded size = %d, want %d", len(b), PacketSize)
	}
}

func TestTruncatedTrailingRecordDropped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packets.bin")
	want := samplePackets(5)
	if err := WriteFile(path, want); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	// Chop the last record mid-way.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if err := os.WriteFile(path, data[:len(data)-PacketSize/2], 0o644); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile on truncated file: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d packets from truncated file, want 4", len(got))
	}
	for i := 0; i < 4; i++ {
		if got[i] != want[i] {
			t.Errorf("packet %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestReadFileMissing(t *testing.T) {
	if _, err := ReadFile(filepath.Join(t.TempDir(), "absent.bin")); err == nil {
		t.Fatal("ReadFile on missing file returned nil error")
	}
}

func TestDecodePacketShortBuffer(t *testing.T) {
	if _, err := DecodePacket(make([]byte, PacketSize-1)); err == nil {
		t.Fatal("DecodePacket accepted short buffer")
	}
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packets.csv")
	if err := WriteCSV(path, samplePackets(3)); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	lines := 0
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	if lines != 4 { // header + 3 rows
		t.Errorf("csv has %d lines, want 4", lines)
	}
}
