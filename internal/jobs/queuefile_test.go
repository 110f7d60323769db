package jobs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeQueueFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queues.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadQueueFile_MergesOverDefaults(t *testing.T) {
	path := writeQueueFile(t, `
queues:
  - name: image-processing
    concurrency: 4
    timeout: 10m
  - name: whatsapp-messages
    rate_count: 25
    rate_window: 1s
`)

	queues, err := LoadQueueFile(path)
	require.NoError(t, err)

	img := queues[QueueImageProcessing]
	assert.Equal(t, 4, img.Concurrency)
	assert.Equal(t, 10*time.Minute, img.Timeout)
	assert.Equal(t, 3, img.MaxAttempts, "unset fields keep the default")

	wa := queues[QueueWhatsAppMessages]
	require.NotNil(t, wa.RateLimit)
	assert.Equal(t, 25, wa.RateLimit.Count)

	// Untouched queues are fully default.
	assert.Equal(t, DefaultQueues()[QueueOrderProcessing], queues[QueueOrderProcessing])
}

func TestLoadQueueFile_RejectsUnknownQueue(t *testing.T) {
	path := writeQueueFile(t, `
queues:
  - name: not-a-queue
    concurrency: 1
`)

	_, err := LoadQueueFile(path)
	assert.ErrorContains(t, err, "unknown queue")
}

func TestLoadQueueFile_RejectsBadDuration(t *testing.T) {
	path := writeQueueFile(t, `
queues:
  - name: image-processing
    timeout: often
`)

	_, err := LoadQueueFile(path)
	assert.ErrorContains(t, err, "invalid duration")
}
