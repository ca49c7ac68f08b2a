package review

import "context"

// KindProgress is the completion state of one review kind within a cycle.
type KindProgress struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	Percentage int `json:"percentage"`
}

// CycleProgress summarises a cycle for the progress report.
type CycleProgress struct {
	CycleID               string                  `json:"cycleId"`
	Phase                 string                  `json:"phase"`
	Kinds                 map[string]KindProgress `json:"kinds"`
	Overall               KindProgress            `json:"overall"`
	CalibrationTotal      int                     `json:"calibrationTotal"`
	CalibrationFinalized  int                     `json:"calibrationFinalized"`
	CalibrationReady      bool                    `json:"calibrationReady"`
}

// Progress computes per-kind and overall completion for a cycle. Forms count
// as completed once submitted, including those since calibrated or published.
func (s *Service) Progress(ctx context.Context, tenantID, cycleID string) (CycleProgress, error) {
	cycle, err := s.store.GetCycle(ctx, tenantID, cycleID)
	if err != nil {
		return CycleProgress{}, err
	}
	progress := CycleProgress{
		CycleID: cycle.ID,
		Phase:   cycle.Phase,
		Kinds:   map[string]KindProgress{},
	}

	kinds := []string{FormSelf, FormManager}
	if cycle.PeerEnabled {
		kinds = append(kinds, FormPeer)
	}
	if cycle.UpwardEnabled {
		kinds = append(kinds, FormUpward)
	}
	for _, kind := range kinds {
		total, err := s.store.CountForms(ctx, tenantID, cycleID, kind)
		if err != nil {
			return CycleProgress{}, err
		}
		completed := 0
		for _, status := range []string{StatusSubmitted, StatusCalibrated, StatusPublished} {
			n, err := s.store.CountFormsByStatus(ctx, tenantID, cycleID, kind, status)
			if err != nil {
				return CycleProgress{}, err
			}
			completed += n
		}
		progress.Kinds[kind] = KindProgress{
			Total:      total,
			Completed:  completed,
			Percentage: CompletionPercentage(completed, total),
		}
		progress.Overall.Total += total
		progress.Overall.Completed += completed
	}
	progress.Overall.Percentage = CompletionPercentage(progress.Overall.Completed, progress.Overall.Total)

	progress.CalibrationTotal, err = s.store.CountCalibrationRecords(ctx, tenantID, cycleID)
	if err != nil {
		return CycleProgress{}, err
	}
	progress.CalibrationFinalized, err = s.store.CountFinalizedCalibrations(ctx, tenantID, cycleID)
	if err != nil {
		return CycleProgress{}, err
	}
	managerProgress := progress.Kinds[FormManager]
	progress.CalibrationReady = managerProgress.Total > 0 && managerProgress.Completed == managerProgress.Total
	return progress, nil
}
