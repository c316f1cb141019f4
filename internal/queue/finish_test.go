package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airdcpp-go/client/internal/adc"
	"github.com/airdcpp-go/client/internal/xerrors"
)

// queueBundle builds a 3-file bundle with every segment already assigned to
// a source, the way a real download would look right before its last byte
// lands.
func queueBundle(t *testing.T, m *Manager) (*Bundle, []*QueueFile) {
	t.Helper()
	files := make([]*QueueFile, 3)
	for i := range files {
		f := NewQueueFile("f"+string(rune('0'+i)), "/tmp/f"+string(rune('0'+i)), 100, "TTH"+string(rune('0'+i)))
		src := &Source{CID: adc.CID{byte(i + 1)}, Online: true}
		f.AddSource(src)
		m.AssignSegment(src, Segment{Start: 0, Size: 100})
		m.filesByToken[f.Token] = f
		files[i] = f
	}
	b := NewBundle("bundle", "/tmp/bundle")
	for _, f := range files {
		b.AddFile(f)
	}
	return b, files
}

func TestBundleCompletionScenario5(t *testing.T) {
	m := NewManager("/tmp")
	b, files := queueBundle(t, m)

	m.BundleCompletionHook.Subscribe("validator", func(b *Bundle) error {
		return xerrors.NewRejection("bundle_completion", "missing", "extras missing")
	})

	for i, f := range files {
		src, _ := f.Source(adc.CID{byte(i + 1)})
		m.FinishSegment(f, src, Segment{Start: 0, Size: 100})
	}

	require.Equal(t, BundleStatusValidationError, b.GetStatus())
	require.NotNil(t, b.HookError)
	assert.Equal(t, "bundle_completion", b.HookError.HookID)
	assert.Equal(t, "extras missing", b.HookError.Message)

	m.BundleCompletionHook.Unsubscribe("validator")
	m.RerunBundleCompletion(b)

	assert.Equal(t, BundleStatusShared, b.GetStatus())
	assert.Nil(t, b.HookError)
}

func TestFileCompletionRejectionPausesBundleAndBlocksBundleCompletion(t *testing.T) {
	m := NewManager("/tmp")
	b, files := queueBundle(t, m)

	var bundleCompletionRan bool
	m.BundleCompletionHook.Subscribe("observer", func(b *Bundle) error {
		bundleCompletionRan = true
		return nil
	})
	m.FileCompletionHook.Subscribe("reject-first", func(f *QueueFile) error {
		if f.Token == "f0" {
			return xerrors.NewRejection("file_completion", "bad", "sfv mismatch")
		}
		return nil
	})

	for i, f := range files {
		src, _ := f.Source(adc.CID{byte(i + 1)})
		m.FinishSegment(f, src, Segment{Start: 0, Size: 100})
	}

	assert.False(t, bundleCompletionRan)
	assert.Equal(t, PriorityPaused, b.GetPriority())

	f0, _ := m.FileByToken("f0")
	require.NotNil(t, f0)
	assert.Equal(t, FileStatusValidationError, f0.Status)
	require.NotNil(t, f0.HookError)
	assert.Equal(t, "sfv mismatch", f0.HookError.Message)

	f1, _ := m.FileByToken("f1")
	assert.Equal(t, FileStatusCompleted, f1.Status)

	m.FileCompletionHook.Unsubscribe("reject-first")
	m.RerunFileCompletion(f0)

	assert.Equal(t, FileStatusCompleted, f0.Status)
	assert.Nil(t, f0.HookError)
	assert.True(t, bundleCompletionRan)
	assert.Equal(t, BundleStatusShared, b.GetStatus())
}
