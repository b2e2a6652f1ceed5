package github

import "time"

// RunStatus is the status of a workflow run, also used as the status filter
// when listing runs.
type RunStatus string

// Conclusion is the outcome recorded for a workflow run or job.
type Conclusion string

// RunStatus constants
const (
	StatusQueued     RunStatus = "queued"
	StatusInProgress RunStatus = "in_progress"
	StatusCompleted  RunStatus = "completed"
	StatusWaiting    RunStatus = "waiting"
	StatusRequested  RunStatus = "requested"
	StatusPending    RunStatus = "pending"

	// StatusFailure is only valid as a list filter; it selects completed runs
	// that concluded with a failure.
	StatusFailure RunStatus = "failure"
)

// Conclusion constants
const (
	ConclusionNone      Conclusion = ""
	ConclusionSuccess   Conclusion = "success"
	ConclusionFailure   Conclusion = "failure"
	ConclusionCancelled Conclusion = "cancelled"
	ConclusionSkipped   Conclusion = "skipped"
	ConclusionTimedOut  Conclusion = "timed_out"
)

// WorkflowRun represents a GitHub Actions workflow run.
type WorkflowRun struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Status        RunStatus  `json:"status"`
	Conclusion    Conclusion `json:"conclusion"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	HTMLURL       string     `json:"html_url"`
	HeadBranch    string     `json:"head_branch"`
	HeadSHA       string     `json:"head_sha"`
	HeadCommit    *Commit    `json:"head_commit"`
	Actor         *Actor     `json:"actor"`
	CheckSuiteURL string     `json:"check_suite_url"`
}

// Commit is the head commit summary embedded in a workflow run.
type Commit struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Actor is the user that triggered a workflow run.
type Actor struct {
	Login string `json:"login"`
}

// CommitMessage returns the head commit message, or "" when the provider
// omitted the head commit.
func (r WorkflowRun) CommitMessage() string {
	if r.HeadCommit == nil {
		return ""
	}
	return r.HeadCommit.Message
}

// ActorLogin returns the login of the triggering user, or "".
func (r WorkflowRun) ActorLogin() string {
	if r.Actor == nil {
		return ""
	}
	return r.Actor.Login
}

// Job represents a job within a workflow run.
type Job struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Status      RunStatus  `json:"status"`
	Conclusion  Conclusion `json:"conclusion"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt time.Time  `json:"completed_at"`
	Steps       []Step     `json:"steps"`
}

// Duration returns how long a completed job ran. Jobs that have not
// completed report zero.
func (j Job) Duration() time.Duration {
	if j.Status != StatusCompleted || j.StartedAt.IsZero() || j.CompletedAt.IsZero() {
		return 0
	}
	return j.CompletedAt.Sub(j.StartedAt)
}

// Step represents a step within a job.
type Step struct {
	Name       string     `json:"name"`
	Status     RunStatus  `json:"status"`
	Conclusion Conclusion `json:"conclusion"`
	Number     int        `json:"number"`
}

// CheckRun is one check run inside a check suite.
type CheckRun struct {
	ID         int64          `json:"id"`
	Name       string         `json:"name"`
	Status     RunStatus      `json:"status"`
	Conclusion Conclusion     `json:"conclusion"`
	Output     CheckRunOutput `json:"output"`
}

// CheckRunOutput carries the annotation summary of a check run.
type CheckRunOutput struct {
	Title            string `json:"title"`
	AnnotationsCount int    `json:"annotations_count"`
	AnnotationsURL   string `json:"annotations_url"`
}

// HasAnnotations reports whether the check run advertises any annotations.
func (c CheckRun) HasAnnotations() bool {
	return c.Output.AnnotationsCount > 0 && c.Output.AnnotationsURL != ""
}

// Annotation is a message attached to a check run, typically naming a
// failing test in its title.
type Annotation struct {
	Path            string `json:"path"`
	Title           string `json:"title"`
	Message         string `json:"message"`
	AnnotationLevel string `json:"annotation_level"`
}

// JobsResponse represents the API response for listing jobs.
type JobsResponse struct {
	TotalCount int   `json:"total_count"`
	Jobs       []Job `json:"jobs"`
}

// RunsResponse represents the API response for listing runs.
type RunsResponse struct {
	TotalCount   int           `json:"total_count"`
	WorkflowRuns []WorkflowRun `json:"workflow_runs"`
}

// CheckRunsResponse represents the API response for listing check runs.
type CheckRunsResponse struct {
	TotalCount int        `json:"total_count"`
	CheckRuns  []CheckRun `json:"check_runs"`
}
