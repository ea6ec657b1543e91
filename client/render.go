package client

// StepState describes a rendered step's visual state.
type StepState string

const (
	StepPending StepState = "pending"
	StepActive  StepState = "active"
	StepDone    StepState = "done"
	StepFailed  StepState = "failed"
)

// Step is one entry in the rendered upload step list.
type Step struct {
	Name  string
	State StepState
}

// stepNames lists the rendered steps in pipeline order.
var stepNames = [...]string{"Upload", "Extract", "Chunk", "Embed", "Store"}

// Steps renders the pipeline step list for one snapshot. The output is
// a pure function of the snapshot, so callers simply redraw it on every
// poll.
func Steps(p Progress) []Step {
	steps := make([]Step, len(stepNames))
	for i, name := range stepNames {
		steps[i] = Step{Name: name, State: StepPending}
	}

	if p.Status == StatusCompleted {
		for i := range steps {
			steps[i].State = StepDone
		}
		return steps
	}

	active := activeStep(p)
	for i := range steps {
		switch {
		case i < active:
			steps[i].State = StepDone
		case i == active:
			if p.Status == StatusError {
				steps[i].State = StepFailed
			} else {
				steps[i].State = StepActive
			}
		}
	}

	return steps
}

// activeStep maps a snapshot onto the step being worked. Failed jobs
// report stage "error", so the frozen percentage names the phase the
// pipeline died in.
func activeStep(p Progress) int {
	switch p.CurrentStage {
	case "queued":
		return 0
	case "extracting":
		return 1
	case "chunking":
		return 2
	case "embedding":
		return 3
	case "storing":
		return 4
	}

	switch {
	case p.Percentage < 5:
		return 0
	case p.Percentage < 65:
		return 1
	case p.Percentage < 75:
		return 2
	case p.Percentage < 90:
		return 3
	default:
		return 4
	}
}
