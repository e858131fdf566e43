// Package codec implements the private binary wire format for persisted
// snapshots. One encoded payload holds a label envelope followed by the full
// attribute tree. The format promises no cross-version compatibility; the
// version byte exists so a reader can reject payloads it does not understand.
package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	"chronicle/pkg/domain"
)

// FileExt is the extension used for snapshot files on disk.
const FileExt = ".snap"

var magic = [4]byte{'C', 'S', 'N', 'P'}

const version = 1

const (
	tagString byte = iota + 1
	tagInt
	tagFloat
	tagBool
	tagList
	tagMap
	tagContainer
)

// Encode serializes a snapshot and its label into the binary format.
func Encode(snapshot domain.Snapshot, label domain.Label) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(magic[:])
	buf.WriteByte(version)
	writeUvarint(&buf, label.Seq)
	writeVarint(&buf, label.At.UnixNano())
	writeString(&buf, label.Description)

	entries, err := snapshot.Entries()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEncode, err)
	}
	if err := writeEntries(&buf, entries); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEncode, err)
	}
	return buf.Bytes(), nil
}

// Decode parses a payload produced by Encode.
func Decode(payload []byte) (domain.Snapshot, domain.Label, error) {
	r := &reader{data: payload}
	var hdr [4]byte
	if err := r.read(hdr[:]); err != nil || hdr != magic {
		return domain.Snapshot{}, domain.Label{}, fmt.Errorf("%w: bad magic", domain.ErrDecode)
	}
	v, err := r.readByte()
	if err != nil {
		return domain.Snapshot{}, domain.Label{}, fmt.Errorf("%w: truncated header", domain.ErrDecode)
	}
	if v != version {
		return domain.Snapshot{}, domain.Label{}, fmt.Errorf("%w: unsupported version %d", domain.ErrDecode, v)
	}

	var label domain.Label
	if label.Seq, err = r.readUvarint(); err != nil {
		return domain.Snapshot{}, domain.Label{}, fmt.Errorf("%w: label seq: %v", domain.ErrDecode, err)
	}
	nanos, err := r.readVarint()
	if err != nil {
		return domain.Snapshot{}, domain.Label{}, fmt.Errorf("%w: label time: %v", domain.ErrDecode, err)
	}
	label.At = time.Unix(0, nanos).UTC()
	if label.Description, err = r.readString(); err != nil {
		return domain.Snapshot{}, domain.Label{}, fmt.Errorf("%w: label description: %v", domain.ErrDecode, err)
	}

	entries, err := readEntries(r, 0)
	if err != nil {
		return domain.Snapshot{}, domain.Label{}, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	if r.remaining() != 0 {
		return domain.Snapshot{}, domain.Label{}, fmt.Errorf("%w: %d trailing bytes", domain.ErrDecode, r.remaining())
	}
	snapshot, err := domain.RebuildSnapshot(entries)
	if err != nil {
		return domain.Snapshot{}, domain.Label{}, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	return snapshot, label, nil
}

func writeEntries(buf *bytes.Buffer, entries []domain.SnapshotEntry) error {
	writeUvarint(buf, uint64(len(entries)))
	for _, entry := range entries {
		writeString(buf, entry.Name)
		var flags byte
		if entry.Readonly {
			flags |= 1
		}
		buf.WriteByte(flags)
		if err := writeValue(buf, entry.Value); err != nil {
			return err
		}
	}
	return nil
}

func writeValue(buf *bytes.Buffer, v domain.Value) error {
	switch v.ValueKind() {
	case domain.KindString:
		s, _ := v.AsString()
		buf.WriteByte(tagString)
		writeString(buf, s)
	case domain.KindInt:
		i, _ := v.AsInt()
		buf.WriteByte(tagInt)
		writeVarint(buf, i)
	case domain.KindFloat:
		f, _ := v.AsFloat()
		buf.WriteByte(tagFloat)
		var bits [8]byte
		binary.BigEndian.PutUint64(bits[:], math.Float64bits(f))
		buf.Write(bits[:])
	case domain.KindBool:
		b, _ := v.AsBool()
		buf.WriteByte(tagBool)
		if b {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case domain.KindList:
		items, _ := v.AsList()
		buf.WriteByte(tagList)
		writeUvarint(buf, uint64(len(items)))
		for _, item := range items {
			if err := writeValue(buf, item); err != nil {
				return err
			}
		}
	case domain.KindMap:
		m, _ := v.AsMap()
		buf.WriteByte(tagMap)
		writeUvarint(buf, uint64(len(m)))
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			writeString(buf, k)
			if err := writeValue(buf, m[k]); err != nil {
				return err
			}
		}
	case domain.KindContainer:
		nested, _ := v.AsContainer()
		buf.WriteByte(tagContainer)
		// A nil nested container is distinct from an empty one; the presence
		// byte keeps the distinction on the wire.
		if nested == nil {
			buf.WriteByte(0)
			return nil
		}
		buf.WriteByte(1)
		snap, err := nested.Capture()
		if err != nil {
			return err
		}
		entries, err := snap.Entries()
		if err != nil {
			return err
		}
		return writeEntries(buf, entries)
	default:
		return fmt.Errorf("unsupported value kind %s", v.ValueKind())
	}
	return nil
}

func readEntries(r *reader, depth int) ([]domain.SnapshotEntry, error) {
	if depth >= domain.MaxTreeDepth {
		return nil, domain.ErrDepthExceeded
	}
	count, err := r.readUvarint()
	if err != nil {
		return nil, err
	}
	if count > uint64(r.remaining()) {
		return nil, fmt.Errorf("entry count %d exceeds payload", count)
	}
	entries := make([]domain.SnapshotEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		name, err := r.readString()
		if err != nil {
			return nil, err
		}
		flags, err := r.readByte()
		if err != nil {
			return nil, err
		}
		value, err := readValue(r, depth+1)
		if err != nil {
			return nil, err
		}
		entries = append(entries, domain.SnapshotEntry{Name: name, Readonly: flags&1 != 0, Value: value})
	}
	return entries, nil
}

func readValue(r *reader, depth int) (domain.Value, error) {
	if depth >= domain.MaxTreeDepth {
		return domain.Value{}, domain.ErrDepthExceeded
	}
	tag, err := r.readByte()
	if err != nil {
		return domain.Value{}, err
	}
	switch tag {
	case tagString:
		s, err := r.readString()
		if err != nil {
			return domain.Value{}, err
		}
		return domain.StringValue(s), nil
	case tagInt:
		i, err := r.readVarint()
		if err != nil {
			return domain.Value{}, err
		}
		return domain.IntValue(i), nil
	case tagFloat:
		var bits [8]byte
		if err := r.read(bits[:]); err != nil {
			return domain.Value{}, err
		}
		return domain.FloatValue(math.Float64frombits(binary.BigEndian.Uint64(bits[:]))), nil
	case tagBool:
		b, err := r.readByte()
		if err != nil {
			return domain.Value{}, err
		}
		return domain.BoolValue(b != 0), nil
	case tagList:
		count, err := r.readUvarint()
		if err != nil {
			return domain.Value{}, err
		}
		if count > uint64(r.remaining()) {
			return domain.Value{}, fmt.Errorf("list length %d exceeds payload", count)
		}
		items := make([]domain.Value, 0, count)
		for i := uint64(0); i < count; i++ {
			item, err := readValue(r, depth+1)
			if err != nil {
				return domain.Value{}, err
			}
			items = append(items, item)
		}
		return domain.ListValue(items...), nil
	case tagMap:
		count, err := r.readUvarint()
		if err != nil {
			return domain.Value{}, err
		}
		if count > uint64(r.remaining()) {
			return domain.Value{}, fmt.Errorf("map length %d exceeds payload", count)
		}
		m := make(map[string]domain.Value, count)
		for i := uint64(0); i < count; i++ {
			k, err := r.readString()
			if err != nil {
				return domain.Value{}, err
			}
			item, err := readValue(r, depth+1)
			if err != nil {
				return domain.Value{}, err
			}
			m[k] = item
		}
		return domain.MapValue(m), nil
	case tagContainer:
		present, err := r.readByte()
		if err != nil {
			return domain.Value{}, err
		}
		if present == 0 {
			return domain.ContainerValue(nil), nil
		}
		entries, err := readEntries(r, depth+1)
		if err != nil {
			return domain.Value{}, err
		}
		snap, err := domain.RebuildSnapshot(entries)
		if err != nil {
			return domain.Value{}, err
		}
		nested, err := snap.Materialize()
		if err != nil {
			return domain.Value{}, err
		}
		return domain.ContainerValue(nested), nil
	default:
		return domain.Value{}, fmt.Errorf("unknown value tag 0x%02x", tag)
	}
}

func writeString(buf *bytes.Buffer, s string) {
	writeUvarint(buf, uint64(len(s)))
	buf.WriteString(s)
}

func writeUvarint(buf *bytes.Buffer, u uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], u)
	buf.Write(tmp[:n])
}

func writeVarint(buf *bytes.Buffer, i int64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutVarint(tmp[:], i)
	buf.Write(tmp[:n])
}

type reader struct {
	data []byte
	off  int
}

func (r *reader) remaining() int { return len(r.data) - r.off }

func (r *reader) read(dst []byte) error {
	if r.remaining() < len(dst) {
		return fmt.Errorf("unexpected end of payload at offset %d", r.off)
	}
	copy(dst, r.data[r.off:])
	r.off += len(dst)
	return nil
}

func (r *reader) readByte() (byte, error) {
	if r.remaining() < 1 {
		return 0, fmt.Errorf("unexpected end of payload at offset %d", r.off)
	}
	b := r.data[r.off]
	r.off++
	return b, nil
}

func (r *reader) readUvarint() (uint64, error) {
	u, n := binary.Uvarint(r.data[r.off:])
	if n <= 0 {
		return 0, fmt.Errorf("invalid uvarint at offset %d", r.off)
	}
	r.off += n
	return u, nil
}

func (r *reader) readVarint() (int64, error) {
	i, n := binary.Varint(r.data[r.off:])
	if n <= 0 {
		return 0, fmt.Errorf("invalid varint at offset %d", r.off)
	}
	r.off += n
	return i, nil
}

func (r *reader) readString() (string, error) {
	length, err := r.readUvarint()
	if err != nil {
		return "", err
	}
	if length > uint64(r.remaining()) {
		return "", fmt.Errorf("string length %d exceeds payload at offset %d", length, r.off)
	}
	s := string(r.data[r.off : r.off+int(length)])
	r.off += int(length)
	return s, nil
}
