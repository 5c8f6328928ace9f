package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// mp4Header is the start of a minimal ftyp box so fixtures look
// file-shaped to size checks and sniffing.
var mp4Header = []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm'}

// WriteMediaFixture creates a stand-in media file of the given size. The
// content is an MP4-style header followed by padding; sizes below the
// header length are padded up to it.
func WriteMediaFixture(t testing.TB, path string, size int64) string {
	t.Helper()

	if size < int64(len(mp4Header)) {
		size = int64(len(mp4Header))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}

	content := make([]byte, size)
	copy(content, mp4Header)
	for i := int64(len(mp4Header)); i < size; i++ {
		content[i] = 0x42
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
