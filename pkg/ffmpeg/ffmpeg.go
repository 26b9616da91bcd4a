package ffmpeg

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/net/context"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// INormalizer turns a raw browser recording into the canonical upright
// H.264 mp4 and samples frames from it for the matching step.
type INormalizer interface {
	Normalize(ctx context.Context, inputPath, outputDir string) (string, error)
	SampleFrames(ctx context.Context, videoPath, outputDir string, count int) ([]string, error)
}

type normalizer struct {
	ffmpegBin  string
	ffprobeBin string
}

func New() INormalizer {
	ffmpegBin := os.Getenv("FFMPEG_BIN")
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	ffprobeBin := os.Getenv("FFPROBE_BIN")
	if ffprobeBin == "" {
		ffprobeBin = "ffprobe"
	}
	return &normalizer{ffmpegBin: ffmpegBin, ffprobeBin: ffprobeBin}
}

type probeOutput struct {
	Streams []struct {
		Tags struct {
			Rotate string `json:"rotate"`
		} `json:"tags"`
		SideDataList []struct {
			Rotation *float64 `json:"rotation"`
		} `json:"side_data_list"`
	} `json:"streams"`
}

// rotationFromProbe extracts a rotation of 0/90/180/270 from ffprobe JSON,
// preferring the stream rotate tag over display-matrix side data.
func rotationFromProbe(raw []byte) int {
	var out probeOutput
	if err := json.Unmarshal(raw, &out); err != nil || len(out.Streams) == 0 {
		return 0
	}
	s := out.Streams[0]

	norm := func(v int) int {
		v = ((v % 360) + 360) % 360
		switch v {
		case 0, 90, 180, 270:
			return v
		}
		return -1
	}

	if s.Tags.Rotate != "" {
		var tag int
		if _, err := fmt.Sscanf(s.Tags.Rotate, "%d", &tag); err == nil {
			if r := norm(tag); r >= 0 {
				return r
			}
		}
	}
	for _, sd := range s.SideDataList {
		if sd.Rotation != nil {
			if r := norm(int(*sd.Rotation + 0.5)); r >= 0 {
				return r
			}
		}
	}
	return 0
}

// transposeFilter maps a container rotation to the corrective ffmpeg filter.
func transposeFilter(rotation int) string {
	switch rotation {
	case 90:
		return "transpose=1"
	case 270:
		return "transpose=2"
	case 180:
		return "transpose=2,transpose=2"
	}
	return ""
}

func (n *normalizer) probeRotation(ctx context.Context, path string) int {
	cmd := exec.CommandContext(ctx, n.ffprobeBin,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream_tags=rotate:side_data_list=displaymatrix",
		"-of", "json", path,
	)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return 0
	}
	return rotationFromProbe(stdout.Bytes())
}

// Normalize re-encodes to H.264/yuv420p with AAC audio, correcting for the
// container rotation. A failed or empty encode never leaves a partial file
// behind.
func (n *normalizer) Normalize(ctx context.Context, inputPath, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", err
	}

	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	outPath := filepath.Join(outputDir, stem+".mp4")

	args := []string{"-y", "-i", inputPath}
	if vf := transposeFilter(n.probeRotation(ctx, inputPath)); vf != "" {
		args = append(args, "-vf", vf)
	}
	args = append(args,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-preset", "ultrafast",
		"-c:a", "aac",
		outPath,
	)

	cmd := exec.CommandContext(ctx, n.ffmpegBin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	info, statErr := os.Stat(outPath)
	if runErr != nil || statErr != nil || info.Size() == 0 {
		os.Remove(outPath)
		tail := stderr.String()
		if len(tail) > 800 {
			tail = tail[len(tail)-800:]
		}
		if tail == "" {
			tail = "no stderr"
		}
		return "", fmt.Errorf("ffmpeg conversion failed for %s: %s", base, tail)
	}

	return outPath, nil
}

// SampleFrames writes up to count uniformly spaced PNG frames from the
// video into outputDir, clearing previous samples first.
func (n *normalizer) SampleFrames(ctx context.Context, videoPath, outputDir string, count int) ([]string, error) {
	if count < 1 {
		count = 1
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}

	old, _ := filepath.Glob(filepath.Join(outputDir, "frame_*.png"))
	for _, f := range old {
		os.Remove(f)
	}

	duration, err := n.probeDuration(ctx, videoPath)
	if err != nil {
		return nil, err
	}
	if duration <= 0 {
		return nil, fmt.Errorf("video has zero duration: %s", videoPath)
	}

	pattern := filepath.Join(outputDir, "frame_%d.png")
	fps := float64(count) / duration
	cmd := exec.CommandContext(ctx, n.ffmpegBin,
		"-y", "-i", videoPath,
		"-vf", fmt.Sprintf("fps=%f", fps),
		"-frames:v", fmt.Sprintf("%d", count),
		pattern,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		tail := stderr.String()
		if len(tail) > 800 {
			tail = tail[len(tail)-800:]
		}
		return nil, fmt.Errorf("ffmpeg frame sampling failed: %s", tail)
	}

	frames, err := filepath.Glob(filepath.Join(outputDir, "frame_*.png"))
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("failed to sample frames from %s", videoPath)
	}
	return frames, nil
}

func (n *normalizer) probeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, n.ffprobeBin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json", path,
	)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed for %s: %w", filepath.Base(path), err)
	}

	var out struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return 0, err
	}
	var d float64
	if _, err := fmt.Sscanf(out.Format.Duration, "%f", &d); err != nil {
		return 0, fmt.Errorf("unparseable duration %q", out.Format.Duration)
	}
	return d, nil
}
