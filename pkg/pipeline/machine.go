package pipeline

import (
	"video-rag-be/pkg/guardrail"
)

// Stage is a node of the processing graph.
type Stage int

const (
	StageLabel Stage = iota
	StageTemporal
	StageRoute
	StageSynthesize
	StageValidate
	StageAccept
)

func (s Stage) String() string {
	switch s {
	case StageLabel:
		return "label"
	case StageTemporal:
		return "temporal"
	case StageRoute:
		return "route"
	case StageSynthesize:
		return "synthesize"
	case StageValidate:
		return "validate"
	case StageAccept:
		return "accept"
	default:
		return "unknown"
	}
}

// Decision is the outcome of the conditional edge after Validate.
type Decision int

const (
	DecisionAccept Decision = iota
	DecisionRetry
)

func (d Decision) String() string {
	if d == DecisionRetry {
		return "retry"
	}
	return "accept"
}

type edge struct {
	onAccept Stage
	onRetry  Stage
}

// transitions is the whole graph. Only Validate has distinct targets.
var transitions = map[Stage]edge{
	StageLabel:      {onAccept: StageTemporal, onRetry: StageTemporal},
	StageTemporal:   {onAccept: StageRoute, onRetry: StageRoute},
	StageRoute:      {onAccept: StageSynthesize, onRetry: StageSynthesize},
	StageSynthesize: {onAccept: StageValidate, onRetry: StageValidate},
	StageValidate:   {onAccept: StageAccept, onRetry: StageSynthesize},
}

// Next returns the stage that follows from. Accept is terminal and maps
// to itself.
func Next(from Stage, d Decision) Stage {
	e, ok := transitions[from]
	if !ok {
		return StageAccept
	}
	if d == DecisionRetry {
		return e.onRetry
	}
	return e.onAccept
}

// Decide is the conditional edge: accept a passing score, accept the best
// guess once attempts reach maxAttempts, otherwise retry synthesis.
func Decide(score float64, attempts, maxAttempts int, band guardrail.Band) Decision {
	if score >= band.Upper {
		return DecisionAccept
	}
	if attempts >= maxAttempts {
		return DecisionAccept
	}
	return DecisionRetry
}
