// Isolation-forest anomaly detector
package anomaly

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/hed1ad/goguardml/pkg/detectors/iforest"

	"cubesat-nightly/internal/telemetry"
)

// ErrTooFewPackets is returned when a batch is too small to fit a model.
var ErrTooFewPackets = errors.New("anomaly: too few packets to fit a model")

// MinBatchSize is the smallest batch the detector will fit on. Below this
// the forest underfits and the normalized scores are meaningless.
const MinBatchSize = 8

// Config controls model fitting and flagging.
type Config struct {
	Trees          int     // number of isolation trees
	SampleFraction float64 // fraction of the batch used for training
	Contamination  float64 // expected anomaly share, passed to the forest
	Threshold      float64 // normalized score above which a packet is flagged
	Seed           int64   // fixes sampling and forest initialization
}

// Detector fits an isolation forest per batch and scores every packet.
type Detector struct {
	cfg Config
}

// New creates a detector, filling zero config fields with defaults.
func New(cfg Config) *Detector {
	if cfg.Trees == 0 {
		cfg.Trees = 200
	}
	if cfg.SampleFraction == 0 {
		cfg.SampleFraction = 0.6
	}
	if cfg.Contamination == 0 {
		cfg.Contamination = 0.03
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = 0.9
	}
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	return &Detector{cfg: cfg}
}

// Result holds per-packet scores and flags, index-aligned with the batch.
type Result struct {
	Scores []float64 `json:"scores"` // normalized to [0,1], 1 = most anomalous
	Flags  []bool    `json:"flags"`
}

// AnomalyCount returns the number of flagged packets.
func (r Result) AnomalyCount() int {
	n := 0
	for _, f := range r.Flags {
		if f {
			n++
		}
	}
	return n
}

// Top returns the index and score of the most anomalous flagged packet.
// ok is false when nothing is flagged.
func (r Result) Top() (idx int, score float64, ok bool) {
	idx = -1
	for i, f := range r.Flags {
		if f && (idx == -1 || r.Scores[i] > score) {
			idx, score = i, r.Scores[i]
		}
	}
	return idx, score, idx != -1
}

// FitScore fits the forest on a seeded random sample of the batch, scores
// every packet, normalizes scores into [0,1], and flags scores above the
// configured threshold.
func (d *Detector) FitScore(batch []telemetry.Packet) (Result, error) {
	if len(batch) < MinBatchSize {
		return Result{}, fmt.Errorf("%w: got %d packets, need at least %d",
			ErrTooFewPackets, len(batch), MinBatchSize)
	}

	features := make([][]float64, len(batch))
	for i, p := range batch {
		features[i] = p.Features()
	}

	training := d.trainingSample(features)

	forest := iforest.New(
		iforest.WithTrees(d.cfg.Trees),
		iforest.WithSampleSize(256),
		iforest.WithContamination(d.cfg.Contamination),
		iforest.WithSeed(d.cfg.Seed),
	)
	if err := forest.Fit(training); err != nil {
		return Result{}, fmt.Errorf("fit isolation forest: %w", err)
	}

	raw, err := forest.Predict(features)
	if err != nil {
		return Result{}, fmt.Errorf("score packets: %w", err)
	}

	scores := normalize(raw)
	flags := make([]bool, len(scores))
	for i, s := range scores {
		flags[i] = s > d.cfg.Threshold
	}
	return Result{Scores: scores, Flags: flags}, nil
}

// trainingSample draws SampleFraction of the rows without replacement,
// deterministically for a given seed.
func (d *Detector) trainingSample(features [][]float64) [][]float64 {
	n := int(math.Ceil(d.cfg.SampleFraction * float64(len(features))))
	if n < MinBatchSize {
		n = MinBatchSize
	}
	if n > len(features) {
		n = len(features)
	}
	rng := rand.New(rand.NewSource(d.cfg.Seed))
	perm := rng.Perm(len(features))
	sample := make([][]float64, 0, n)
	for _, idx := range perm[:n] {
		sample = append(sample, features[idx])
	}
	return sample
}

// normalize maps raw forest scores onto [0,1] with 1 = most anomalous.
// Min-max over the batch; a tiny epsilon guards against a zero span when
// every packet scores identically.
func normalize(raw []float64) []float64 {
	lo, hi := raw[0], raw[0]
	for _, s := range raw {
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}
	span := hi - lo + 1e-9
	out := make([]float64, len(raw))
	for i, s := range raw {
		out[i] = (s - lo) / span
	}
	return out
}
