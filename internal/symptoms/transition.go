package symptoms

import "fmt"

// checkTransition enforces the session state machine and the
// result/error presence rules for terminal states.
func checkTransition(from Status, t Transition) error {
	if from.Terminal() {
		return ErrTerminalState
	}
	switch t.To {
	case StatusProcessing:
		if from != StatusPending {
			return fmt.Errorf("%w: %s->%s", ErrInvalidTransition, from, t.To)
		}
		if t.Analysis != nil || t.Confidence != nil || t.Error != nil {
			return fmt.Errorf("%w: processing carries no result", ErrInvalidTransition)
		}
	case StatusCompleted:
		if from != StatusProcessing {
			return fmt.Errorf("%w: %s->%s", ErrInvalidTransition, from, t.To)
		}
		if t.Analysis == nil || t.Confidence == nil || t.Error != nil {
			return fmt.Errorf("%w: completed requires analysis and confidence only", ErrInvalidTransition)
		}
		if *t.Confidence < 0 || *t.Confidence > 100 {
			return fmt.Errorf("%w: confidence %.2f out of range", ErrInvalidTransition, *t.Confidence)
		}
	case StatusFailed:
		if t.Error == nil || t.Analysis != nil || t.Confidence != nil {
			return fmt.Errorf("%w: failed requires error detail only", ErrInvalidTransition)
		}
	default:
		return fmt.Errorf("%w: %s->%s", ErrInvalidTransition, from, t.To)
	}
	return nil
}

func applyTransition(s Session, t Transition) Session {
	s.Status = t.To
	s.UpdatedAt = t.At
	switch t.To {
	case StatusCompleted:
		s.Analysis = t.Analysis
		s.Confidence = t.Confidence
		s.Fallback = t.Analysis.Fallback
		s.ProcessingTimeMs = t.ProcessingTimeMs
		at := t.At
		s.CompletedAt = &at
	case StatusFailed:
		s.Error = t.Error
		s.ProcessingTimeMs = t.ProcessingTimeMs
		at := t.At
		s.CompletedAt = &at
	}
	return s
}
