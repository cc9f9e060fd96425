package ffmpeg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/s0urc3k0d/Statisfaction-sub001/config"
	"github.com/s0urc3k0d/Statisfaction-sub001/logging"
	"github.com/s0urc3k0d/Statisfaction-sub001/testsupport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRunner(t *testing.T, bin string) *Runner {
	t.Helper()
	cfg := &config.Config{
		FFBin:              bin,
		FFExtraArgs:        "-threads 2",
		DataDir:            t.TempDir(),
		TransitionDuration: 500 * time.Millisecond,
	}
	r, err := NewRunner(cfg, logging.Discard())
	require.NoError(t, err)
	return r
}

func writeClips(t *testing.T, dir string, n int) []string {
	t.Helper()
	var clips []string
	for i := 0; i < n; i++ {
		p := filepath.Join(dir, "clip_"+string(rune('a'+i))+".mp4")
		testsupport.WriteFile(t, p, "clip")
		clips = append(clips, p)
	}
	return clips
}

func TestBuildArgs(t *testing.T) {
	args, err := BuildArgs(Plan{
		Manifest:           "/work/j1/concat.txt",
		Output:             "/out/compilation_j1.mp4",
		Format:             FormatSquare,
		Quality:            QualityLow,
		Transitions:        true,
		ClipCount:          3,
		TransitionDuration: 500 * time.Millisecond,
		ExtraArgs:          []string{"-threads", "2"},
	})
	require.NoError(t, err)

	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-f concat -safe 0 -i /work/j1/concat.txt")
	assert.Contains(t, joined, "scale=1080:1080:force_original_aspect_ratio=decrease,pad=1080:1080:(ow-iw)/2:(oh-ih)/2:color=black,setsar=1,fade=t=in:st=0:d=0.50")
	assert.Contains(t, joined, "-preset veryfast -crf 28 -b:v 2500k")
	assert.Equal(t, []string{"-threads", "2", "-y", "/out/compilation_j1.mp4"}, args[len(args)-4:])
}

func TestFilterGraphSkipsFadeForSingleClip(t *testing.T) {
	res := Resolution{Width: 1920, Height: 1080}
	assert.NotContains(t, FilterGraph(res, true, 1, time.Second), "fade")
	assert.NotContains(t, FilterGraph(res, false, 4, time.Second), "fade")
	assert.Contains(t, FilterGraph(res, true, 2, time.Second), "fade=t=in:st=0:d=1.00")
}

func TestWriteManifestKeepsOrderAndEscapesQuotes(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "concat.txt")
	clips := []string{filepath.Join(dir, "b.mp4"), filepath.Join(dir, "it's.mp4"), filepath.Join(dir, "a.mp4")}
	require.NoError(t, WriteManifest(manifest, clips))

	data, err := os.ReadFile(manifest)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "file '"+clips[0]+"'", lines[0])
	assert.Equal(t, "file '"+filepath.Join(dir, `it'\''s.mp4`)+"'", lines[1])
	assert.Equal(t, "file '"+clips[2]+"'", lines[2])
}

func TestRunnerAvailable(t *testing.T) {
	engine := testsupport.NewFakeEngine(t, 0)
	assert.NoError(t, testRunner(t, engine.Bin).Available())
	assert.Error(t, testRunner(t, "/nonexistent/ffmpeg").Available())
}

func TestNewRunnerRejectsUnsafeExtraArgs(t *testing.T) {
	cfg := &config.Config{FFBin: "ffmpeg", FFExtraArgs: "-threads 2 && rm", DataDir: t.TempDir()}
	_, err := NewRunner(cfg, logging.Discard())
	assert.Error(t, err)
}

func TestComposeSuccess(t *testing.T) {
	engine := testsupport.NewFakeEngine(t, 0)
	r := testRunner(t, engine.Bin)
	jobDir := filepath.Join(r.cfg.WorkDir(), "job1")
	clips := writeClips(t, jobDir, 2)

	var markers []Marker
	out, err := r.Compose(context.Background(), Request{
		JobID:       "job1",
		Dir:         jobDir,
		Clips:       clips,
		Format:      FormatLandscape,
		Quality:     QualityMedium,
		Transitions: true,
	}, func(m Marker) { markers = append(markers, m) })
	require.NoError(t, err)

	assert.Equal(t, r.OutputPath("job1"), out)
	assert.FileExists(t, out)
	assert.NoDirExists(t, jobDir, "clips and manifest are removed on success")
	assert.Equal(t, []Marker{{Elapsed: time.Second}, {Elapsed: 2 * time.Second}}, markers)

	args := engine.Args(t)
	assert.Equal(t, filepath.Join(jobDir, manifestName), args[6])
	assert.Equal(t, out, args[len(args)-1])
	assert.Contains(t, args, "-threads")
}

func TestComposeEngineFailure(t *testing.T) {
	engine := testsupport.NewFakeEngine(t, 3)
	r := testRunner(t, engine.Bin)
	jobDir := filepath.Join(r.cfg.WorkDir(), "job2")
	clips := writeClips(t, jobDir, 1)

	_, err := r.Compose(context.Background(), Request{
		JobID:   "job2",
		Dir:     jobDir,
		Clips:   clips,
		Format:  FormatPortrait,
		Quality: QualityHigh,
	}, nil)
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.Code)
	assert.Contains(t, err.Error(), "exited with code 3")
	assert.Contains(t, exitErr.Tail, "Conversion failed!")
	assert.NoFileExists(t, r.OutputPath("job2"))
}

func TestComposeRejectsEmptyClipList(t *testing.T) {
	r := testRunner(t, "ffmpeg")
	_, err := r.Compose(context.Background(), Request{JobID: "x", Dir: t.TempDir()}, nil)
	assert.Error(t, err)
}
