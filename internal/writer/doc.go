// Package writer exposes sinks for finished manifests.
package writer

// Writer receives the bytes of a finished manifest.
type Writer interface {
	WriteManifest(blob []byte) error
}

var (
	_ Writer = (*FileWriter)(nil)
	_ Writer = (*MemWriter)(nil)
)
