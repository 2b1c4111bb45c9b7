package wal

import (
	"errors"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

var ErrCorruptRecord = errors.New("corrupt journal record")

// Record is one journalled submission.
type Record struct {
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(seq uint64, data []byte) *Record {
	return &Record{
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}

// Wire fields of the record body.
const (
	fieldSeq  protowire.Number = 1
	fieldTime protowire.Number = 2
	fieldData protowire.Number = 3
)

// marshalBody encodes the record in protobuf wire format.
func marshalBody(r *Record) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldSeq, protowire.VarintType)
	b = protowire.AppendVarint(b, r.Seq)
	b = protowire.AppendTag(b, fieldTime, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Time))
	b = protowire.AppendTag(b, fieldData, protowire.BytesType)
	b = protowire.AppendBytes(b, r.Data)
	return b
}

func unmarshalBody(b []byte) (*Record, error) {
	rec := &Record{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, ErrCorruptRecord
		}
		b = b[n:]

		switch {
		case num == fieldSeq && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, ErrCorruptRecord
			}
			rec.Seq = v
			b = b[n:]
		case num == fieldTime && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, ErrCorruptRecord
			}
			rec.Time = int64(v)
			b = b[n:]
		case num == fieldData && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, ErrCorruptRecord
			}
			rec.Data = append([]byte(nil), v...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, ErrCorruptRecord
			}
			b = b[n:]
		}
	}
	return rec, nil
}
