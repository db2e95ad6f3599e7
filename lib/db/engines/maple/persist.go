package maple

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

const (
	magicNum     = "MAPLEDB\x00" // File format identifier
	mapleVersion = 4             // Snapshot format version
	maxFieldLen  = 1 << 30       // Upper bound for a single key or value when decoding
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// --------------------------------------------------------------------------
// Snapshot
// --------------------------------------------------------------------------

// writeSnapshot persists all entries into a temporary file and atomically replaces the snapshot.
//
// Format (little endian):
//  1. Magic number "MAPLEDB\x00"
//  2. Version number (uint8)
//  3. Number of entries (uint64)
//  4. For each entry: key length (uint32), key, value length (uint32), value
//  5. CRC32-C over 3. and 4. (uint32)
func (maple *mapleImpl) writeSnapshot() error {
	tmp, err := os.CreateTemp(maple.location, snapshotFile+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "maple: create snapshot")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	crc := crc32.New(crcTable)
	bw := bufio.NewWriterSize(tmp, 1024*1024) // 1 MB buffer

	if _, err := bw.WriteString(magicNum); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "maple: write snapshot header")
	}
	if err := bw.WriteByte(mapleVersion); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "maple: write snapshot header")
	}

	body := io.MultiWriter(bw, crc)
	if err := binary.Write(body, binary.LittleEndian, uint64(maple.data.Size())); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "maple: write snapshot")
	}

	var writeErr error
	maple.data.Range(func(key string, value []byte) bool {
		if writeErr = writeField(body, []byte(key)); writeErr != nil {
			return false
		}
		writeErr = writeField(body, value)
		return writeErr == nil
	})
	if writeErr != nil {
		_ = tmp.Close()
		return errors.Wrap(writeErr, "maple: write snapshot")
	}

	if err := binary.Write(bw, binary.LittleEndian, crc.Sum32()); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "maple: write snapshot checksum")
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "maple: write snapshot")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "maple: sync snapshot")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "maple: close snapshot")
	}
	if err := os.Rename(tmpName, maple.snapshotPath()); err != nil {
		return errors.Wrap(err, "maple: replace snapshot")
	}
	return syncDir(maple.location)
}

// loadSnapshot reads the snapshot into the map. A missing snapshot is not an error.
func (maple *mapleImpl) loadSnapshot() error {
	f, err := os.Open(maple.snapshotPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "maple: open snapshot")
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, 1024*1024) // 1 MB buffer

	// Read and verify magic number
	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return errors.Wrap(err, "maple: read snapshot header")
	}
	if string(magicBytes) != magicNum {
		return errors.Newf("maple: invalid snapshot %s: magic number mismatch", maple.snapshotPath())
	}

	// Read and verify version
	version, err := br.ReadByte()
	if err != nil {
		return errors.Wrap(err, "maple: read snapshot header")
	}
	if version != mapleVersion {
		return errors.Newf("maple: unsupported snapshot version: %d (expected %d)", version, mapleVersion)
	}

	crc := crc32.New(crcTable)
	body := io.TeeReader(br, crc)

	var count uint64
	if err := binary.Read(body, binary.LittleEndian, &count); err != nil {
		return errors.Wrap(err, "maple: read snapshot")
	}

	for i := uint64(0); i < count; i++ {
		key, err := readField(body)
		if err != nil {
			return errors.Wrapf(err, "maple: read snapshot entry %d", i)
		}
		value, err := readField(body)
		if err != nil {
			return errors.Wrapf(err, "maple: read snapshot entry %d", i)
		}
		maple.data.Store(string(key), value)
	}

	expected := crc.Sum32()
	var stored uint32
	if err := binary.Read(br, binary.LittleEndian, &stored); err != nil {
		return errors.Wrap(err, "maple: read snapshot checksum")
	}
	if stored != expected {
		return errors.Newf("maple: snapshot checksum mismatch (%08x != %08x)", stored, expected)
	}
	return nil
}

// --------------------------------------------------------------------------
// Append Log
// --------------------------------------------------------------------------

// appendRecord writes one log record with a single Write call.
// Record layout: key length (uint32), key, value length (uint32), value, CRC32-C of the preceding bytes.
func appendRecord(w io.Writer, key, value []byte) (int, error) {
	buf := make([]byte, 0, 12+len(key)+len(value))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(key)))
	buf = append(buf, key...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(value)))
	buf = append(buf, value...)
	buf = binary.LittleEndian.AppendUint32(buf, crc32.Checksum(buf, crcTable))
	return w.Write(buf)
}

// replayLog applies all complete records of the append log.
// A torn or corrupt tail (e.g. after a crash during a write) is cut off.
func (maple *mapleImpl) replayLog() (int, error) {
	f, err := os.OpenFile(maple.logPath(), os.O_RDWR, 0o644)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "maple: open log")
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var (
		offset   int64
		replayed int
	)

	for {
		key, value, n, err := readRecord(br)
		if err == io.EOF {
			return replayed, nil
		}
		if err != nil {
			log.Warningf("maple: discarding log tail at offset %d: %v", offset, err)
			if err := f.Truncate(offset); err != nil {
				return replayed, errors.Wrap(err, "maple: truncate log")
			}
			return replayed, nil
		}
		maple.data.Store(string(key), value)
		offset += int64(n)
		replayed++
	}
}

// readRecord reads one record. A clean end of the log returns io.EOF.
func readRecord(r io.Reader) (key, value []byte, n int, err error) {
	crc := crc32.New(crcTable)
	body := io.TeeReader(r, crc)

	var keyLen uint32
	if err = binary.Read(body, binary.LittleEndian, &keyLen); err != nil {
		return nil, nil, 0, err // io.EOF only if nothing was read
	}
	if key, err = readN(body, keyLen); err != nil {
		return nil, nil, 0, err
	}
	if value, err = readField(body); err != nil {
		return nil, nil, 0, err
	}

	var stored uint32
	if err = binary.Read(r, binary.LittleEndian, &stored); err != nil {
		return nil, nil, 0, noEOF(err)
	}
	if stored != crc.Sum32() {
		return nil, nil, 0, errors.New("checksum mismatch")
	}
	return key, value, 12 + len(key) + len(value), nil
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

func writeField(w io.Writer, field []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(field))); err != nil {
		return err
	}
	_, err := w.Write(field)
	return err
}

func readField(r io.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, noEOF(err)
	}
	return readN(r, length)
}

func readN(r io.Reader, length uint32) ([]byte, error) {
	if length > maxFieldLen {
		return nil, errors.Newf("field length %d exceeds limit", length)
	}
	field := make([]byte, length)
	if _, err := io.ReadFull(r, field); err != nil {
		return nil, noEOF(err)
	}
	return field, nil
}

// noEOF turns io.EOF in the middle of a record into io.ErrUnexpectedEOF
func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// syncDir makes a rename in dir durable
func syncDir(dir string) error {
	d, err := os.Open(filepath.Clean(dir))
	if err != nil {
		return errors.Wrap(err, "maple: open directory")
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return errors.Wrap(err, "maple: sync directory")
	}
	return nil
}
