package types

import "fmt"

// Pipeline is the closed set of conversation states. A user is always in
// exactly one of these; routing never compares raw strings.
type Pipeline int

const (
	PipelineDefault Pipeline = iota
	PipelineSelectSubject
	PipelineQuiz
	PipelineQA
	PipelineConfiguration
)

var pipelineNames = map[Pipeline]string{
	PipelineDefault:       "default",
	PipelineSelectSubject: "select_subject",
	PipelineQuiz:          "quiz",
	PipelineQA:            "qa",
	PipelineConfiguration: "configuration",
}

func (p Pipeline) String() string {
	if name, ok := pipelineNames[p]; ok {
		return name
	}
	return "default"
}

// ParsePipeline converts a stored pipeline name back into a Pipeline.
// Unknown names are an error, not a silent fallback.
func ParsePipeline(s string) (Pipeline, error) {
	for p, name := range pipelineNames {
		if name == s {
			return p, nil
		}
	}
	return PipelineDefault, fmt.Errorf("unknown pipeline %q", s)
}

// transitions is the single place that defines which pipeline switches are
// legal. Every pipeline can return to default; everything else must go
// through the default menu.
var transitions = map[Pipeline][]Pipeline{
	PipelineDefault:       {PipelineSelectSubject, PipelineQuiz, PipelineQA, PipelineConfiguration},
	PipelineSelectSubject: {PipelineDefault},
	PipelineQuiz:          {PipelineDefault, PipelineQuiz},
	PipelineQA:            {PipelineDefault, PipelineQA},
	PipelineConfiguration: {PipelineDefault},
}

// CanTransition reports whether moving from p to next is allowed.
func (p Pipeline) CanTransition(next Pipeline) bool {
	for _, allowed := range transitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}
