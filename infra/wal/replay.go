package wal

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sort"
)

type ReplayHandler func(*Record) error

// Replay feeds every journalled record to fn in append order and returns the
// highest sequence seen, so the sequencer can resume after it.
func Replay(dir string, fn ReplayHandler) (lastSeq uint64, err error) {
	files, err := filepath.Glob(filepath.Join(dir, "segment-*.wal"))
	if err != nil {
		return 0, err
	}
	sort.Strings(files)

	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return lastSeq, err
		}

		for {
			rec, err := readRecord(f)
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				f.Close()
				return lastSeq, err
			}
			if rec.Seq > lastSeq {
				lastSeq = rec.Seq
			}
			if err := fn(rec); err != nil {
				f.Close()
				return lastSeq, err
			}
		}
		f.Close()
	}
	return lastSeq, nil
}

func readRecord(r io.Reader) (*Record, error) {
	header := make([]byte, 8)
	if _, err := io.ReadFull(r, header); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			// Torn tail write from a crash; stop replay here.
			return nil, io.EOF
		}
		return nil, err
	}

	length := binary.BigEndian.Uint32(header[0:4])
	sum := binary.BigEndian.Uint32(header[4:8])

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, err
	}

	if crc32.ChecksumIEEE(body) != sum {
		return nil, ErrCorruptRecord
	}
	return unmarshalBody(body)
}
