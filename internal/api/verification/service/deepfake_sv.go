package verificationService

import (
	"bytes"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

var (
	fakeLinePattern = regexp.MustCompile(`Fake:\s*(\d)`)
	realLinePattern = regexp.MustCompile(`Real:\s*(\d)`)
)

// parseDeepfakeVerdict reads the classifier's stdout line of the form
// "Fake: 0 Real: 1". A missing or malformed verdict counts as real: the
// deepfake signal is advisory and must not fail closed on tooling noise.
func parseDeepfakeVerdict(output string) bool {
	fake := fakeLinePattern.FindStringSubmatch(output)
	real := realLinePattern.FindStringSubmatch(output)

	if fake != nil && fake[1] == "1" {
		return false
	}
	if real != nil && real[1] == "1" {
		return true
	}
	if fake != nil && fake[1] == "0" {
		return true
	}
	return true
}

func deepfakeCommand(videoPath string) (string, []string) {
	raw := os.Getenv("DEEPFAKE_CMD")
	if raw == "" {
		raw = "python3 deepfake_classifier.py"
	}
	parts := strings.Fields(raw)
	return parts[0], append(parts[1:], videoPath)
}

func deepfakeTimeout() time.Duration {
	if raw := os.Getenv("DEEPFAKE_TIMEOUT_MS"); raw != "" {
		if ms, err := strconv.Atoi(raw); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return 10 * time.Minute
}

// truncateMessage keeps the leading max bytes of s, backing off to the
// previous rune boundary so the cut never splits a multi-byte character.
func truncateMessage(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// submitDeepfakeJob marks the job running synchronously, then runs the
// classifier in a detached goroutine. Re-submits bump a per-session
// generation counter; a stale job finding the counter moved on discards its
// verdict, so the client only ever observes the most recent submission.
func (s *verificationService) submitDeepfakeJob(reqID string, videoPath string) {
	ctx := context.Background()

	repo, err := s.repo.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"req_id": reqID,
			"error":  err.Error(),
		}).Error("Failed to open repository for deepfake job")
		return
	}

	// The generation bump and the running write share the jobs lock with
	// the terminal write in runDeepfakeJob, so a superseded job can never
	// clobber a fresh running row with its verdict.
	s.jobsMu.Lock()
	s.jobGen[reqID]++
	gen := s.jobGen[reqID]
	if err := repo.Requests.SetDeepfakeRunning(ctx, reqID); err != nil {
		s.jobsMu.Unlock()
		s.log.WithFields(logrus.Fields{
			"req_id": reqID,
			"error":  err.Error(),
		}).Error("Failed to mark deepfake job running")
		return
	}
	s.jobsMu.Unlock()
	_ = s.redis.InvalidateState(ctx, reqID)

	go s.runDeepfakeJob(reqID, videoPath, gen)
}

func (s *verificationService) runDeepfakeJob(reqID string, videoPath string, gen int) {
	ctx, cancel := context.WithTimeout(context.Background(), deepfakeTimeout())
	defer cancel()

	bin, args := deepfakeCommand(videoPath)
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	// The classifier context may already be expired here; the terminal
	// writes get their own deadline so a timed-out job still lands in the
	// error state instead of sticking at running.
	writeCtx, writeCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer writeCancel()

	repo, err := s.repo.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"req_id": reqID,
			"error":  err.Error(),
		}).Error("Failed to open repository for deepfake result")
		return
	}

	// Generation check and terminal write under the same lock as the
	// submit path.
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	if s.jobGen[reqID] != gen {
		s.log.WithFields(logrus.Fields{
			"req_id": reqID,
		}).Info("Discarding superseded deepfake job result")
		return
	}

	if runErr != nil {
		msg := runErr.Error()
		if tail := strings.TrimSpace(stderr.String()); tail != "" {
			msg = truncateMessage(tail, 400)
		}
		s.log.WithFields(logrus.Fields{
			"req_id": reqID,
			"error":  msg,
		}).Error("Deepfake classifier failed")
		if err := repo.Requests.SetDeepfakeError(writeCtx, reqID, msg); err != nil {
			s.log.WithFields(logrus.Fields{
				"req_id": reqID,
				"error":  err.Error(),
			}).Error("Failed to record deepfake job error")
		}
		_ = s.redis.InvalidateState(writeCtx, reqID)
		return
	}

	real := parseDeepfakeVerdict(stdout.String())
	if err := repo.Requests.SetDeepfakeCompleted(writeCtx, reqID, real); err != nil {
		s.log.WithFields(logrus.Fields{
			"req_id": reqID,
			"error":  err.Error(),
		}).Error("Failed to record deepfake verdict")
		return
	}
	_ = s.redis.InvalidateState(writeCtx, reqID)

	s.log.WithFields(logrus.Fields{
		"req_id": reqID,
		"real":   real,
	}).Info("Deepfake job completed")
}
