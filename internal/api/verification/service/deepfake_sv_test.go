package verificationService

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	verificationRepository "VerifyGolang/internal/api/verification/repository"
	"VerifyGolang/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
)

// fakeRequests records the deepfake writes the job runner performs, along
// with the context state observed at write time.
type fakeRequests struct {
	mu           sync.Mutex
	runningCalls int
	onRunning    func()
	completed    []bool
	errMsgs      []string
	writeCtxErr  error
}

func (f *fakeRequests) SetDeepfakeRunning(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runningCalls++
	if f.onRunning != nil {
		f.onRunning()
	}
	return nil
}

func (f *fakeRequests) SetDeepfakeCompleted(ctx context.Context, id string, real bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, real)
	f.writeCtxErr = ctx.Err()
	return nil
}

func (f *fakeRequests) SetDeepfakeError(ctx context.Context, id string, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errMsgs = append(f.errMsgs, errMsg)
	f.writeCtxErr = ctx.Err()
	return nil
}

func (f *fakeRequests) CreateRequest(ctx context.Context, req entity.VerificationRequest) error {
	return nil
}

func (f *fakeRequests) GetRequestByID(ctx context.Context, id string) (entity.VerificationRequest, error) {
	return entity.VerificationRequest{}, nil
}

func (f *fakeRequests) SetIDFrontVerified(ctx context.Context, id string, verified bool) error {
	return nil
}

func (f *fakeRequests) SetIDBackVerified(ctx context.Context, id string, verified bool) error {
	return nil
}

func (f *fakeRequests) SetVideoVerified(ctx context.Context, id string, verified bool) error {
	return nil
}

func (f *fakeRequests) ResetRequest(ctx context.Context, id string) error { return nil }

type fakeRepo struct {
	requests *fakeRequests
}

func (f *fakeRepo) NewClient(tx bool) (verificationRepository.Client, error) {
	return verificationRepository.Client{
		Requests: f.requests,
		Commit:   func() error { return nil },
		Rollback: func() error { return nil },
	}, nil
}

type fakeRedis struct{}

func (fakeRedis) SetState(ctx context.Context, reqID string, payload []byte) error { return nil }
func (fakeRedis) GetState(ctx context.Context, reqID string) ([]byte, error)       { return nil, nil }
func (fakeRedis) InvalidateState(ctx context.Context, reqID string) error          { return nil }

func newDeepfakeTestService(req *fakeRequests) *verificationService {
	svc := newTestService(&fakeDetector{})
	svc.repo = &fakeRepo{requests: req}
	svc.redis = fakeRedis{}
	return svc
}

func TestParseDeepfakeVerdict(t *testing.T) {
	tests := []struct {
		name   string
		output string
		real   bool
	}{
		{"fake wins", "Fake: 1 Real: 0", false},
		{"real wins", "Fake: 0 Real: 1", true},
		{"fake only", "Fake: 1", false},
		{"real only", "Real: 1", true},
		{"explicit not fake", "Fake: 0", true},
		{"noise around verdict", "loading model...\nFake: 1 Real: 0\ndone", false},
		{"empty output defaults to real", "", true},
		{"garbage defaults to real", "segmentation fault", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.real, parseDeepfakeVerdict(tt.output))
		})
	}
}

func TestDeepfakeCommand(t *testing.T) {
	t.Setenv("DEEPFAKE_CMD", "python3 -u classify.py --weights w.pt")

	bin, args := deepfakeCommand("/tmp/video.mp4")
	assert.Equal(t, "python3", bin)
	assert.Equal(t, []string{"-u", "classify.py", "--weights", "w.pt", "/tmp/video.mp4"}, args)
}

func TestDeepfakeCommandDefault(t *testing.T) {
	t.Setenv("DEEPFAKE_CMD", "")

	bin, args := deepfakeCommand("video.mp4")
	assert.Equal(t, "python3", bin)
	assert.Equal(t, []string{"deepfake_classifier.py", "video.mp4"}, args)
}

func TestRunDeepfakeJobRecordsVerdict(t *testing.T) {
	t.Setenv("DEEPFAKE_CMD", "echo Fake: 0 Real: 1 --video")

	req := &fakeRequests{}
	svc := newDeepfakeTestService(req)
	svc.jobGen["req-1"] = 1

	svc.runDeepfakeJob("req-1", "video.mp4", 1)

	require.Len(t, req.completed, 1)
	assert.True(t, req.completed[0])
	assert.NoError(t, req.writeCtxErr, "the verdict write must run under a live context")
}

func TestRunDeepfakeJobTimeoutStillRecordsError(t *testing.T) {
	// tail -f blocks on the clip until the classifier context kills it
	t.Setenv("DEEPFAKE_CMD", "tail -f")
	t.Setenv("DEEPFAKE_TIMEOUT_MS", "50")

	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	req := &fakeRequests{}
	svc := newDeepfakeTestService(req)
	svc.jobGen["req-1"] = 1

	svc.runDeepfakeJob("req-1", path, 1)

	assert.Empty(t, req.completed)
	require.Len(t, req.errMsgs, 1, "a timed-out job must land in the error state, not stay running")
	assert.NoError(t, req.writeCtxErr, "the error write must not inherit the expired classifier context")
}

func TestRunDeepfakeJobStaleGenerationDiscarded(t *testing.T) {
	t.Setenv("DEEPFAKE_CMD", "echo Fake: 1 Real: 0 --video")

	req := &fakeRequests{}
	svc := newDeepfakeTestService(req)
	// a later submit has already moved the generation on
	svc.jobGen["req-1"] = 2

	svc.runDeepfakeJob("req-1", "video.mp4", 1)

	assert.Empty(t, req.completed, "a superseded job must not write its verdict")
	assert.Empty(t, req.errMsgs)
}

func TestSubmitDeepfakeJobBumpsGenerationFirst(t *testing.T) {
	t.Setenv("DEEPFAKE_CMD", "echo Fake: 0 Real: 1 --video")

	req := &fakeRequests{}
	svc := newDeepfakeTestService(req)

	var genAtRunning int
	req.onRunning = func() {
		// the jobs lock is held here, so the read is safe
		genAtRunning = svc.jobGen["req-1"]
	}

	svc.submitDeepfakeJob("req-1", "video.mp4")

	assert.Equal(t, 1, genAtRunning, "the generation must move before the row is marked running")
	require.Eventually(t, func() bool {
		req.mu.Lock()
		defer req.mu.Unlock()
		return len(req.completed) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTruncateMessageKeepsLeadingRunes(t *testing.T) {
	assert.Equal(t, "short", truncateMessage("short", 400))

	s := strings.Repeat("x", 399) + "日本語"
	out := truncateMessage(s, 400)
	assert.Equal(t, 399, len(out), "the cut must back off to the previous rune boundary")
	assert.True(t, utf8.ValidString(out))
	assert.True(t, strings.HasPrefix(s, out))
}
