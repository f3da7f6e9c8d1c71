package shadercache

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// BinaryCacheHeaderVersion is the one supported layout version for the
// device-bound blob header.
const BinaryCacheHeaderVersion uint32 = 1

// BinaryCacheHeaderSize is the wire size of the blob header: length,
// version, vendor id, device id, and the 16-byte device cache UUID,
// little-endian.
const BinaryCacheHeaderSize = 32

// binaryCacheHeader is the parsed leading header of a device-bound blob.
type binaryCacheHeader struct {
	Length   uint32
	Version  uint32
	VendorID uint32
	DeviceID uint32
	UUID     uuid.UUID
}

func decodeBinaryCacheHeader(blob []byte) binaryCacheHeader {
	var h binaryCacheHeader
	h.Length = binary.LittleEndian.Uint32(blob[0:4])
	h.Version = binary.LittleEndian.Uint32(blob[4:8])
	h.VendorID = binary.LittleEndian.Uint32(blob[8:12])
	h.DeviceID = binary.LittleEndian.Uint32(blob[12:16])
	copy(h.UUID[:], blob[16:32])
	return h
}

// EncodeBinaryCacheHeader builds the header a well-formed device-bound blob
// starts with. Runtime implementations of BinaryCacher are expected to
// produce blobs whose leading bytes match this layout.
func EncodeBinaryCacheHeader(device DeviceIdentity) []byte {
	b := make([]byte, BinaryCacheHeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], BinaryCacheHeaderSize)
	binary.LittleEndian.PutUint32(b[4:8], BinaryCacheHeaderVersion)
	binary.LittleEndian.PutUint32(b[8:12], device.VendorID)
	binary.LittleEndian.PutUint32(b[12:16], device.DeviceID)
	copy(b[16:32], device.CacheUUID[:])
	return b
}

// ValidateBinaryBlob reports whether a device-bound blob was produced by
// the exact device/driver identity given. Any mismatch rejects the whole
// blob; there is no partial reuse.
func ValidateBinaryBlob(blob []byte, device DeviceIdentity) bool {
	log := Logger()
	if len(blob) < BinaryCacheHeaderSize {
		log.Warn("device-bound cache rejected: blob shorter than header")
		return false
	}

	h := decodeBinaryCacheHeader(blob)
	switch {
	case h.Length < BinaryCacheHeaderSize:
		log.Warn("device-bound cache rejected: bad header length", "length", h.Length)
		return false
	case h.Version != BinaryCacheHeaderVersion:
		log.Warn("device-bound cache rejected: unsupported header version", "version", h.Version)
		return false
	case h.VendorID != device.VendorID:
		log.Warn("device-bound cache rejected: vendor mismatch",
			"blob", fmt.Sprintf("%#x", h.VendorID), "device", fmt.Sprintf("%#x", device.VendorID))
		return false
	case h.DeviceID != device.DeviceID:
		log.Warn("device-bound cache rejected: device mismatch",
			"blob", fmt.Sprintf("%#x", h.DeviceID), "device", fmt.Sprintf("%#x", device.DeviceID))
		return false
	case h.UUID != device.CacheUUID:
		log.Warn("device-bound cache rejected: cache UUID mismatch")
		return false
	}
	return true
}

// binaryCache manages the one device-bound accelerator blob: loading and
// validating it from disk, seeding the runtime cache object, and persisting
// the object's contents back.
type binaryCache struct {
	cacher BinaryCacher
	path   string
	device DeviceIdentity
}

// create initializes the runtime cache object, seeded from disk when load
// is set and the persisted blob validates. An initialization failure with
// seed data is retried once with an empty cache before giving up.
func (b *binaryCache) create(load bool) error {
	var seed []byte
	if load {
		blob, err := os.ReadFile(b.path)
		switch {
		case err == nil && ValidateBinaryBlob(blob, b.device):
			seed = blob
		case err == nil:
			// Stale blob: delete it so it is not considered next time.
			os.Remove(b.path)
		case !os.IsNotExist(err):
			Logger().Warn("reading device-bound cache", "path", b.path, "err", err)
		}
	}

	err := b.cacher.Initialize(seed)
	if err != nil && seed != nil {
		Logger().Warn("device-bound cache rejected seed data, retrying empty", "err", err)
		err = b.cacher.Initialize(nil)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBinaryCache, err)
	}
	return nil
}

// save reads back the runtime cache contents and replaces the persisted
// file. The write goes to a temporary file first and is renamed into place,
// so a crash mid-save never loses the previous blob.
func (b *binaryCache) save() error {
	blob, err := b.cacher.Data()
	if err != nil {
		return fmt.Errorf("shadercache: read device-bound cache: %w", err)
	}

	tmp := b.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("shadercache: save device-bound cache: %w", err)
	}
	_, werr := f.Write(blob)
	if werr == nil {
		// The blob must reach stable storage before the rename makes it
		// the current file.
		werr = f.Sync()
	}
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		os.Remove(tmp)
		return fmt.Errorf("shadercache: save device-bound cache: %w", werr)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("shadercache: save device-bound cache: %w", err)
	}
	return nil
}
