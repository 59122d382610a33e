package cache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4/v4"

	"github.com/Sumatoshi-tech/globalesm/pkg/safeconv"
)

const (
	diskMagic     = "gesm"
	diskHeaderLen = len(diskMagic) + 1 + 4
	diskExt       = ".lz4"
	shardPrefix   = 2

	encodingRaw byte = 0
	encodingLZ4 byte = 1

	dirPerm  = 0o755
	filePerm = 0o644

	// maxEntrySize caps a decoded entry: a compiled 16 MiB source plus its
	// binding tables stays well below it.
	maxEntrySize = 64 << 20
	// maxLZ4Ratio is the largest expansion an LZ4 block can encode.
	maxLZ4Ratio = 255
)

// ErrCorrupt is returned when a disk entry fails to decode.
var ErrCorrupt = errors.New("corrupt cache entry")

// Disk is a content-addressed on-disk store of LZ4 block-compressed values.
// Entries live at <dir>/<first two key chars>/<key>.lz4.
type Disk struct {
	dir string
}

// NewDisk returns a disk store rooted at dir, creating it if needed.
func NewDisk(dir string) (*Disk, error) {
	err := os.MkdirAll(dir, dirPerm)
	if err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	return &Disk{dir: dir}, nil
}

// Path returns the file path for key.
func (d *Disk) Path(key string) string {
	shard := key
	if len(shard) > shardPrefix {
		shard = shard[:shardPrefix]
	}

	return filepath.Join(d.dir, shard, key+diskExt)
}

// Get reads and decompresses the entry for key. A missing entry returns
// fs.ErrNotExist; an undecodable one is removed and reported as ErrCorrupt.
func (d *Disk) Get(key string) ([]byte, error) {
	path := d.Path(key)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cache entry: %w", err)
	}

	value, err := decodeEntry(data)
	if err != nil {
		removeErr := os.Remove(path)
		if removeErr != nil && !errors.Is(removeErr, fs.ErrNotExist) {
			return nil, errors.Join(err, removeErr)
		}

		return nil, err
	}

	return value, nil
}

// Put compresses and writes value under key. The write goes through a
// temporary file and a rename so readers never observe a partial entry.
func (d *Disk) Put(key string, value []byte) error {
	path := d.Path(key)

	err := os.MkdirAll(filepath.Dir(path), dirPerm)
	if err != nil {
		return fmt.Errorf("create cache shard: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create cache temp file: %w", err)
	}

	_, writeErr := tmp.Write(encodeEntry(value))
	closeErr := tmp.Close()

	if writeErr != nil || closeErr != nil {
		return errors.Join(fmt.Errorf("write cache entry: %w", errors.Join(writeErr, closeErr)), os.Remove(tmp.Name()))
	}

	err = os.Chmod(tmp.Name(), filePerm)
	if err == nil {
		err = os.Rename(tmp.Name(), path)
	}

	if err != nil {
		return errors.Join(fmt.Errorf("commit cache entry: %w", err), os.Remove(tmp.Name()))
	}

	return nil
}

// Remove deletes the entry for key if present.
func (d *Disk) Remove(key string) error {
	err := os.Remove(d.Path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove cache entry: %w", err)
	}

	return nil
}

// encodeEntry lays out magic, encoding byte, uncompressed length (uint32 LE),
// then the payload. Incompressible values are stored raw.
func encodeEntry(value []byte) []byte {
	header := make([]byte, diskHeaderLen, diskHeaderLen+lz4.CompressBlockBound(len(value)))
	copy(header, diskMagic)
	binary.LittleEndian.PutUint32(header[len(diskMagic)+1:], safeconv.MustIntToUint32(len(value)))

	compressed := make([]byte, lz4.CompressBlockBound(len(value)))

	written, err := lz4.CompressBlock(value, compressed, nil)
	if err != nil || written == 0 || written >= len(value) {
		header[len(diskMagic)] = encodingRaw

		return append(header, value...)
	}

	header[len(diskMagic)] = encodingLZ4

	return append(header, compressed[:written]...)
}

func decodeEntry(data []byte) ([]byte, error) {
	if len(data) < diskHeaderLen || string(data[:len(diskMagic)]) != diskMagic {
		return nil, fmt.Errorf("%w: bad header", ErrCorrupt)
	}

	size := int(binary.LittleEndian.Uint32(data[len(diskMagic)+1:]))
	payload := data[diskHeaderLen:]

	switch data[len(diskMagic)] {
	case encodingRaw:
		if len(payload) != size {
			return nil, fmt.Errorf("%w: length mismatch", ErrCorrupt)
		}

		return payload, nil
	case encodingLZ4:
		if size < 0 || size > maxEntrySize || size > len(payload)*maxLZ4Ratio {
			return nil, fmt.Errorf("%w: declared size %d for %d compressed bytes", ErrCorrupt, size, len(payload))
		}

		value := make([]byte, size)

		read, err := lz4.UncompressBlock(payload, value)
		if err != nil || read != size {
			return nil, fmt.Errorf("%w: lz4 block", ErrCorrupt)
		}

		return value, nil
	default:
		return nil, fmt.Errorf("%w: unknown encoding %d", ErrCorrupt, data[len(diskMagic)])
	}
}
