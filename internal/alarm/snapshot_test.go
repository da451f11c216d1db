package alarm

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSnapshotSaver(t *testing.T) {
	dir := t.TempDir()
	saver := NewFileSnapshotSaver(dir)

	frame := []byte{0xFF, 0xD8, 0x01, 0x02, 0xFF, 0xD9}
	path, err := saver.Save(7, warningEvent(), frame)
	require.NoError(t, err)

	dateDir := time.Now().Format("20060102")
	assert.True(t, strings.HasPrefix(path, "/snapshots/"+dateDir+"/event_7_WARNING_ZONE_INTRUSION_"))
	assert.True(t, strings.HasSuffix(path, ".jpg"))

	// The public path maps onto the file under the snapshot root
	onDisk := filepath.Join(dir, strings.TrimPrefix(path, "/snapshots/"))
	written, err := os.ReadFile(onDisk)
	require.NoError(t, err)
	assert.Equal(t, frame, written)
}
