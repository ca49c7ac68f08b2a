package review

import "errors"

var (
	ErrCycleNotFound        = errors.New("review cycle not found")
	ErrFormNotFound         = errors.New("review form not found")
	ErrRecordNotFound       = errors.New("calibration record not found")
	ErrInvalidPhase         = errors.New("cycle is not in a phase that allows this action")
	ErrInvalidStatus        = errors.New("form status does not allow this action")
	ErrCalibrationOpen      = errors.New("cycle has unfinalized calibration records")
	ErrFormLocked           = errors.New("form is submitted and can no longer be edited")
	ErrKindNotOpen          = errors.New("cycle phase does not accept this form kind yet")
	ErrNotFormAuthor        = errors.New("only the form author may perform this action")
	ErrCalibrationFinalized = errors.New("calibration record is already finalized")
)
