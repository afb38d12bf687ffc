package simple

// History records per-epoch metrics of a training run. ValLoss and
// ValPoseAccuracy are empty when no validation set was given.
type History struct {
	Loss            []float64
	ValLoss         []float64
	PoseAccuracy    []float64
	ValPoseAccuracy []float64

	// BestEpoch is the zero-based epoch with the lowest monitored loss.
	BestEpoch int
}

// Epochs returns the number of recorded epochs.
func (h *History) Epochs() int { return len(h.Loss) }

// SaveHistory writes h to path with encoding/gob.
func SaveHistory(path string, h *History) error {
	return writeGob(path, h)
}

// LoadHistory reads a history written by SaveHistory.
func LoadHistory(path string) (*History, error) {
	var h History
	if err := readGob(path, &h); err != nil {
		return nil, err
	}
	return &h, nil
}
