// Package window turns feature rows into scaled, fixed-length input/target
// windows for sequence forecasting.
package window

import (
	"fmt"
	"time"

	"github.com/Hrishi-524/DeepOrbit/internal/model"
	"github.com/Hrishi-524/DeepOrbit/internal/preprocess"
)

// SplitMode selects how rows are partitioned into train and test.
type SplitMode string

const (
	// SplitLastDay holds out the last calendar day (UTC).
	SplitLastDay SplitMode = "last-day"
	// SplitPercentage holds out everything after the first ratio of rows.
	SplitPercentage SplitMode = "percentage"
)

// DefaultTrainRatio is the train share of a percentage split.
const DefaultTrainRatio = 0.8

// Partition is a chronological train/test split: every test row is later
// than every train row.
type Partition struct {
	Train []preprocess.FeatureRow
	Test  []preprocess.FeatureRow
}

// Split partitions time-ordered rows. ratio is only used by SplitPercentage.
func Split(rows []preprocess.FeatureRow, mode SplitMode, ratio float64) (Partition, error) {
	switch mode {
	case SplitLastDay:
		return splitLastDay(rows)
	case SplitPercentage:
		if ratio <= 0 || ratio >= 1 {
			return Partition{}, fmt.Errorf("train ratio must be in (0, 1), got %g", ratio)
		}
		k := SplitIndex(len(rows), ratio)
		p := Partition{Train: rows[:k], Test: rows[k:]}
		if len(p.Train) == 0 || len(p.Test) == 0 {
			return Partition{}, &model.InsufficientDataError{What: "percentage split", Need: 2, Got: len(rows)}
		}
		return p, nil
	}
	return Partition{}, fmt.Errorf("unknown split mode %q", mode)
}

// SplitIndex returns the number of leading rows a percentage split assigns
// to train.
func SplitIndex(n int, ratio float64) int {
	return int(float64(n) * ratio)
}

func splitLastDay(rows []preprocess.FeatureRow) (Partition, error) {
	days := 0
	var last time.Time
	for _, r := range rows {
		d := r.Timestamp.UTC().Truncate(24 * time.Hour)
		if days == 0 || !d.Equal(last) {
			days++
			last = d
		}
	}
	if days < 2 {
		return Partition{}, &model.InsufficientDataError{What: "last-day split (distinct days)", Need: 2, Got: days}
	}

	k := len(rows)
	for k > 0 && rows[k-1].Timestamp.UTC().Truncate(24*time.Hour).Equal(last) {
		k--
	}
	return Partition{Train: rows[:k], Test: rows[k:]}, nil
}
