package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/s0urc3k0d/Statisfaction-sub001/config"
	"github.com/s0urc3k0d/Statisfaction-sub001/logging"
)

const (
	manifestName = "concat.txt"
	audioBitrate = "160k"
	tailLines    = 20
)

// ExitError reports a non-zero exit status from the transcoding engine.
type ExitError struct {
	Code int
	Tail []string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("transcoding engine exited with code %d", e.Code)
}

// Request describes a single compilation run.
type Request struct {
	JobID       string
	Dir         string
	Clips       []string
	Format      Format
	Quality     Quality
	Transitions bool
}

// Plan is everything needed to render the engine argument list.
type Plan struct {
	Manifest           string
	Output             string
	Format             Format
	Quality            Quality
	Transitions        bool
	ClipCount          int
	TransitionDuration time.Duration
	ExtraArgs          []string
}

type Runner struct {
	cfg       *config.Config
	extraArgs []string
	logger    *slog.Logger
}

func NewRunner(cfg *config.Config, logger *slog.Logger) (*Runner, error) {
	extra, err := ParseExtraArgs(cfg.FFExtraArgs)
	if err != nil {
		return nil, fmt.Errorf("invalid FF_EXTRA_ARGS: %w", err)
	}
	if err := os.MkdirAll(cfg.OutputDir(), 0o755); err != nil {
		return nil, fmt.Errorf("could not create output directory: %w", err)
	}
	return &Runner{
		cfg:       cfg,
		extraArgs: extra,
		logger:    logging.WithComponent(logger, "ffmpeg"),
	}, nil
}

// Available reports whether the engine binary can be resolved.
func (r *Runner) Available() error {
	if _, err := exec.LookPath(r.cfg.FFBin); err != nil {
		return fmt.Errorf("ffmpeg binary not found or not in PATH: %s", r.cfg.FFBin)
	}
	return nil
}

// OutputPath is the fixed location a job's compilation is written to.
func (r *Runner) OutputPath(jobID string) string {
	return filepath.Join(r.cfg.OutputDir(), fmt.Sprintf("compilation_%s.mp4", jobID))
}

// Compose merges req.Clips into a single letterboxed file and returns its path.
// onMarker is called for every progress marker on the engine's diagnostic stream.
func (r *Runner) Compose(ctx context.Context, req Request, onMarker func(Marker)) (string, error) {
	if len(req.Clips) == 0 {
		return "", errors.New("no clips to compose")
	}
	if err := r.checkResources(); err != nil {
		return "", fmt.Errorf("insufficient system resources: %w", err)
	}

	manifest := filepath.Join(req.Dir, manifestName)
	if err := WriteManifest(manifest, req.Clips); err != nil {
		return "", fmt.Errorf("write concat manifest: %w", err)
	}

	output := r.OutputPath(req.JobID)
	args, err := BuildArgs(Plan{
		Manifest:           manifest,
		Output:             output,
		Format:             req.Format,
		Quality:            req.Quality,
		Transitions:        req.Transitions,
		ClipCount:          len(req.Clips),
		TransitionDuration: r.cfg.TransitionDuration,
		ExtraArgs:          r.extraArgs,
	})
	if err != nil {
		return "", err
	}

	// No deadline: a stuck engine holds its slot until the manager shuts down.
	cmd := exec.CommandContext(ctx, r.cfg.FFBin, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("attach engine diagnostics: %w", err)
	}

	r.logger.Info("starting engine", "job_id", req.JobID, "clips", len(req.Clips), "args", strings.Join(args, " "))
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start engine: %w", err)
	}

	var tail []string
	scanner := newDiagnosticScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if m, ok := ParseMarker(line); ok {
			if onMarker != nil {
				onMarker(m)
			}
			continue
		}
		tail = append(tail, line)
		if len(tail) > tailLines {
			tail = tail[1:]
		}
	}

	if err := cmd.Wait(); err != nil {
		_ = os.Remove(output)
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			r.logger.Error("engine failed", "job_id", req.JobID, "code", exitErr.ExitCode(), "tail", strings.Join(tail, "\n"))
			return "", &ExitError{Code: exitErr.ExitCode(), Tail: tail}
		}
		return "", fmt.Errorf("ffmpeg execution failed: %w", err)
	}

	if err := os.RemoveAll(req.Dir); err != nil {
		r.logger.Warn("could not remove work directory", "job_id", req.JobID, "dir", req.Dir, "error", err)
	}
	return output, nil
}

// WriteManifest writes an ffmpeg concat demuxer list, one clip per line, in order.
func WriteManifest(path string, clips []string) error {
	var b strings.Builder
	for _, clip := range clips {
		abs, err := filepath.Abs(clip)
		if err != nil {
			return err
		}
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(abs, "'", `'\''`))
		b.WriteString("'\n")
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// FilterGraph scales every clip to fit res, pads it centred to fill the frame
// and, for multi-clip runs with transitions, fades in from a fixed offset.
func FilterGraph(res Resolution, transitions bool, clipCount int, fade time.Duration) string {
	w, h := res.Width, res.Height
	filters := []string{
		fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", w, h),
		fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black", w, h),
		"setsar=1",
	}
	if transitions && clipCount > 1 && fade > 0 {
		// Fixed offset rather than per-pair cut points.
		filters = append(filters, fmt.Sprintf("fade=t=in:st=0:d=%.2f", fade.Seconds()))
	}
	return strings.Join(filters, ",")
}

// BuildArgs renders the full engine argument list for p.
func BuildArgs(p Plan) ([]string, error) {
	res, ok := p.Format.Resolution()
	if !ok {
		return nil, fmt.Errorf("unknown format %q", p.Format)
	}
	enc, ok := p.Quality.Encoding()
	if !ok {
		return nil, fmt.Errorf("unknown quality %q", p.Quality)
	}

	args := []string{
		"-hide_banner",
		"-f", "concat",
		"-safe", "0",
		"-i", p.Manifest,
		"-vf", FilterGraph(res, p.Transitions, p.ClipCount, p.TransitionDuration),
		"-c:v", "libx264",
		"-preset", enc.Preset,
		"-crf", fmt.Sprint(enc.CRF),
		"-b:v", enc.Bitrate,
		"-c:a", "aac",
		"-b:a", audioBitrate,
		"-movflags", "+faststart",
	}
	args = append(args, p.ExtraArgs...)
	args = append(args, "-y", p.Output)
	return args, nil
}
