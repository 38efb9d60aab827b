package build

import (
	"time"

	"git.home.luguber.info/inful/navindex/internal/index"
)

// Trigger names what started a build.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerStartup   Trigger = "startup"
	TriggerWatch     Trigger = "watch"
	TriggerScheduled Trigger = "scheduled"
	TriggerAPI       Trigger = "api"
)

// Status is the final state of a build.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusUnchanged Status = "unchanged" // succeeded with the previous fingerprint
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// IsSuccess reports whether the build produced an index.
func (s Status) IsSuccess() bool { return s == StatusSuccess || s == StatusUnchanged }

// Stage names of the steps around the core pipeline.
const (
	StageFetch      = "fetch"
	StageLoad       = "load"
	StageCheckLinks = "check_links"
	StageWrite      = "write"
)

// Result reports a finished build. Index is nil unless Status.IsSuccess.
type Result struct {
	BuildID     string
	Trigger     Trigger
	Status      Status
	Index       *index.Index
	Commit      string
	Documents   int
	Drafts      int
	FailedStage string
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
}
