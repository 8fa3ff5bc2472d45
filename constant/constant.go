package constant

type JobState string

const (
	JobStatePending JobState = "PENDING"
	JobStateRunning JobState = "RUNNING"
	JobStateSuccess JobState = "SUCCESS"
	JobStateFailed  JobState = "FAILED"
)

func (s JobState) String() string {
	return string(s)
}

// Terminal reports whether no further transition out of the state is allowed.
func (s JobState) Terminal() bool {
	return s == JobStateSuccess || s == JobStateFailed
}

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}
