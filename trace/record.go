// Package trace reads the fixed-layout binary instruction stream produced by
// the out-of-process trace extractor. Each record is a flat, little-endian
// struct with no variable-length or pointer-chasing fields, decoded field by
// field in a fixed order.
package trace

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// NumSources is the number of source-address slots carried by a record.
	NumSources = 4
	// NumDests is the number of destination-address slots carried by a record.
	NumDests = 4
	// MaxOpcodeLength is the fixed width of the null-padded opcode field.
	MaxOpcodeLength = 32

	// RegionBeginOpcode marks the start of a region of interest.
	RegionBeginOpcode = "ROI_BEGIN"
	// RegionEndOpcode marks the end of a region of interest.
	RegionEndOpcode = "ROI_END"
)

// RecordSize is the on-wire size of a Record in bytes.
const RecordSize = 8*3 + 8*NumSources + 8*NumDests + 8 + MaxOpcodeLength

// Record is one instruction descriptor as emitted by the trace extractor.
// Field order matches the wire format exactly: it must not be reordered.
type Record struct {
	ProcessID    uint64
	ThreadID     uint64
	InstPointer  uint64
	SourceAddr   [NumSources]uint64
	DestAddr     [NumDests]uint64
	RegionID     uint64
	opcode       [MaxOpcodeLength]byte
}

// Opcode returns the record's opcode as a trimmed string.
func (r *Record) Opcode() string {
	n := 0
	for n < len(r.opcode) && r.opcode[n] != 0 {
		n++
	}
	return string(r.opcode[:n])
}

// SetOpcode stores s into the fixed opcode field, truncating if necessary.
func (r *Record) SetOpcode(s string) {
	var buf [MaxOpcodeLength]byte
	n := copy(buf[:], s)
	_ = n
	r.opcode = buf
}

// IsRegionBegin reports whether this record marks the start of a region.
func (r *Record) IsRegionBegin() bool { return r.Opcode() == RegionBeginOpcode }

// IsRegionEnd reports whether this record marks the end of a region.
func (r *Record) IsRegionEnd() bool { return r.Opcode() == RegionEndOpcode }

// HasMemoryOperand reports whether any source or destination address is set.
func (r *Record) HasMemoryOperand() bool {
	for _, a := range r.SourceAddr {
		if a != 0 {
			return true
		}
	}
	for _, a := range r.DestAddr {
		if a != 0 {
			return true
		}
	}
	return false
}

// ReadFrom decodes one Record from r in little-endian wire order.
func (r *Record) ReadFrom(in io.Reader) (int64, error) {
	if err := binary.Read(in, binary.LittleEndian, &r.ProcessID); err != nil {
		return 0, err
	}
	if err := binary.Read(in, binary.LittleEndian, &r.ThreadID); err != nil {
		return 0, err
	}
	if err := binary.Read(in, binary.LittleEndian, &r.InstPointer); err != nil {
		return 0, err
	}
	if err := binary.Read(in, binary.LittleEndian, &r.SourceAddr); err != nil {
		return 0, err
	}
	if err := binary.Read(in, binary.LittleEndian, &r.DestAddr); err != nil {
		return 0, err
	}
	if err := binary.Read(in, binary.LittleEndian, &r.RegionID); err != nil {
		return 0, err
	}
	if err := binary.Read(in, binary.LittleEndian, &r.opcode); err != nil {
		return 0, err
	}
	return RecordSize, nil
}

// WriteTo encodes the Record to w in the same wire order ReadFrom expects.
func (r *Record) WriteTo(out io.Writer) (int64, error) {
	for _, field := range []any{
		r.ProcessID, r.ThreadID, r.InstPointer,
		r.SourceAddr, r.DestAddr, r.RegionID, r.opcode,
	} {
		if err := binary.Write(out, binary.LittleEndian, field); err != nil {
			return 0, fmt.Errorf("trace: write record: %w", err)
		}
	}
	return RecordSize, nil
}
