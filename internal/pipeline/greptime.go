package pipeline

import (
	"context"
	"fmt"
	"time"

	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	ingesterContext "github.com/GreptimeTeam/greptimedb-ingester-go/context"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"cubesat-nightly/internal/telemetry"
)

// GreptimeSink writes scored packets to GreptimeDB for long-term trend
// analysis across runs.
type GreptimeSink struct {
	client greptime.Client
	db     string
	table  string
}

// NewGreptimeSink connects to GreptimeDB and auto-creates the table.
func NewGreptimeSink(endpoint, database string) (*GreptimeSink, error) {
	ctx := ingesterContext.NewContext(context.Background())
	client, err := greptime.NewClient(ctx, &greptime.Config{
		Endpoint: endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("connect greptimedb: %w", err)
	}

	ddl := `
CREATE TABLE IF NOT EXISTS cubesat_telemetry (
  run_id STRING TAG,
  mode STRING TAG,
  battery_v DOUBLE,
  panel_i DOUBLE,
  temp_c DOUBLE,
  gyro_x DOUBLE,
  gyro_y DOUBLE,
  gyro_z DOUBLE,
  anomaly_score DOUBLE,
  is_anomaly DOUBLE,
  ts TIMESTAMP TIME INDEX
) WITH (ttl='90d')
`
	if _, err := client.SQL(ctx, ddl); err != nil {
		return nil, fmt.Errorf("create cubesat_telemetry table: %w", err)
	}

	return &GreptimeSink{client: client, db: database, table: "cubesat_telemetry"}, nil
}

// WriteScored implements ScoredSink.
func (s *GreptimeSink) WriteScored(runID string, packets []ScoredPacket) error {
	if len(packets) == 0 {
		return nil
	}

	ctx := ingesterContext.NewContext(context.Background())

	tbl := table.New(s.table)
	tbl.AddTagColumn("run_id", types.StringType, 0)
	tbl.AddTagColumn("mode", types.StringType, 0)
	tbl.AddFieldColumn("battery_v", types.Float64Type)
	tbl.AddFieldColumn("panel_i", types.Float64Type)
	tbl.AddFieldColumn("temp_c", types.Float64Type)
	tbl.AddFieldColumn("gyro_x", types.Float64Type)
	tbl.AddFieldColumn("gyro_y", types.Float64Type)
	tbl.AddFieldColumn("gyro_z", types.Float64Type)
	tbl.AddFieldColumn("anomaly_score", types.Float64Type)
	// Stored as 0/1 to keep the column numeric for aggregation queries.
	tbl.AddFieldColumn("is_anomaly", types.Float64Type)
	tbl.SetTimeIndex("ts", types.TimestampType)

	for _, p := range packets {
		tbl.AppendTagValue("run_id", runID)
		tbl.AppendTagValue("mode", telemetry.ModeName(p.Mode))
		tbl.AppendFieldValue("battery_v", float64(p.BatteryV))
		tbl.AppendFieldValue("panel_i", float64(p.PanelI))
		tbl.AppendFieldValue("temp_c", float64(p.TempC))
		tbl.AppendFieldValue("gyro_x", float64(p.GyroX))
		tbl.AppendFieldValue("gyro_y", float64(p.GyroY))
		tbl.AppendFieldValue("gyro_z", float64(p.GyroZ))
		tbl.AppendFieldValue("anomaly_score", p.Score)
		flagged := 0.0
		if p.Flagged {
			flagged = 1.0
		}
		tbl.AppendFieldValue("is_anomaly", flagged)
		tbl.AppendTimeIndex(time.Unix(int64(p.Timestamp), 0).UTC())
	}

	if err := s.client.Write(ctx, s.db, []*table.Table{tbl}); err != nil {
		return fmt.Errorf("write scored packets: %w", err)
	}
	return nil
}
