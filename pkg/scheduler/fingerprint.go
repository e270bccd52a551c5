package scheduler

import (
	"hash/crc32"
	"os"

	"github.com/forgelabs/forge/pkg/builder"
	"github.com/forgelabs/forge/pkg/store"
)

// computeFingerprint hashes together every input named by §3: the source
// file's bytes, its size and mtime at second resolution, the contents of
// its metadata file if one exists, the builder's declared version, and the
// job descriptor's extra fingerprint info.
func computeFingerprint(sourceAbs string, metadataAbs string, hasMetadata bool, rec *builder.Recognizer, descriptor builder.JobDescriptor) (store.Fingerprint, error) {
	h := crc32.NewIEEE()

	data, err := os.ReadFile(sourceAbs)
	if err != nil {
		return store.FingerprintAbsent, err
	}
	if _, err := h.Write(data); err != nil {
		return store.FingerprintAbsent, err
	}

	info, err := os.Stat(sourceAbs)
	if err != nil {
		return store.FingerprintAbsent, err
	}
	writeUint64(h, uint64(info.Size()))
	writeUint64(h, uint64(info.ModTime().Unix()))

	if hasMetadata {
		metaData, err := os.ReadFile(metadataAbs)
		if err != nil {
			return store.FingerprintAbsent, err
		}
		if _, err := h.Write(metaData); err != nil {
			return store.FingerprintAbsent, err
		}
	}

	if _, err := h.Write([]byte(rec.Version)); err != nil {
		return store.FingerprintAbsent, err
	}
	if _, err := h.Write(descriptor.ExtraFingerprintInfo); err != nil {
		return store.FingerprintAbsent, err
	}

	// A real CRC32 that happens to equal 0 or 1 collides with the
	// absent/failed sentinels; this is accepted as spec'd (see DESIGN.md).
	return store.Fingerprint(h.Sum32()), nil
}

func writeUint64(h interface{ Write([]byte) (int, error) }, v uint64) {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	h.Write(buf[:])
}
