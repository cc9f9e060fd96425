package task

import "github.com/s0urc3k0d/Statisfaction-sub001/ffmpeg"

// Phase boundaries of the advisory progress value.
const (
	ProgressDownloadDone = 40
	ProgressProcessCap   = 95
	ProgressComplete     = 100
)

// DownloadProgress maps clip-by-clip completion linearly onto 0..40.
func DownloadProgress(done, total int) int {
	if total <= 0 || done <= 0 {
		return 0
	}
	if done >= total {
		return ProgressDownloadDone
	}
	return done * ProgressDownloadDone / total
}

// Estimator turns engine progress markers into a new progress value during
// the processing phase. Results are clamped by the job, so an estimator only
// needs to move forward.
type Estimator interface {
	Next(current int, marker ffmpeg.Marker) int
}

// MarkerStep nudges progress by a fixed step per marker, capped below completion.
type MarkerStep struct {
	Step int
}

func (s MarkerStep) Next(current int, _ ffmpeg.Marker) int {
	step := s.Step
	if step <= 0 {
		step = 5
	}
	next := current + step
	if next > ProgressProcessCap {
		next = ProgressProcessCap
	}
	if next < current {
		return current
	}
	return next
}
