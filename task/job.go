package task

import (
	"fmt"
	"time"

	"github.com/s0urc3k0d/Statisfaction-sub001/ffmpeg"
)

type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusProcessing  Status = "processing"
	StatusDone        Status = "done"
	StatusFailed      Status = "failed"
)

var statusRank = map[Status]int{
	StatusQueued:      0,
	StatusDownloading: 1,
	StatusProcessing:  2,
	StatusDone:        3,
	StatusFailed:      3,
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Active reports whether a job in this status holds an admission slot.
func (s Status) Active() bool {
	return s == StatusDownloading || s == StatusProcessing
}

// CanTransition allows queued -> downloading -> processing -> done, and
// failed from any non-terminal status.
func CanTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	return ok && toRank == fromRank+1
}

// Job is the in-memory state of one compilation request.
type Job struct {
	ID                 string         `json:"id"`
	UserID             string         `json:"userId"`
	ClipIDs            []string       `json:"clipIds"`
	Format             ffmpeg.Format  `json:"format"`
	Quality            ffmpeg.Quality `json:"quality"`
	IncludeTransitions bool           `json:"includeTransitions"`
	Status             Status         `json:"status"`
	Progress           int            `json:"progress"`
	OutputPath         string         `json:"outputPath,omitempty"`
	DownloadURL        string         `json:"downloadUrl,omitempty"`
	Error              string         `json:"error,omitempty"`
	CreatedAt          time.Time      `json:"createdAt"`
	StartedAt          time.Time      `json:"startedAt,omitempty"`
	CompletedAt        time.Time      `json:"completedAt,omitempty"`
}

func (j *Job) transition(to Status) error {
	if !CanTransition(j.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, to)
	}
	j.Status = to
	return nil
}

// raiseProgress never lowers progress and freezes it once the job is terminal.
func (j *Job) raiseProgress(p int) {
	if j.Status.Terminal() {
		return
	}
	if p > ProgressComplete {
		p = ProgressComplete
	}
	if p > j.Progress {
		j.Progress = p
	}
}

func (j *Job) clone() Job {
	c := *j
	c.ClipIDs = append([]string(nil), j.ClipIDs...)
	return c
}
