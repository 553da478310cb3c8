package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/logflow/sweep/internal/model"
)

// JSONL reads newline-delimited JSON objects, one event per non-blank line.
// Line offsets are indexed when the file is opened.
type JSONL struct {
	file    *os.File
	offsets []int64
	lengths []int
	buf     []byte
}

// OpenJSONL opens and indexes a JSONL file.
func OpenJSONL(path string) (*JSONL, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	s := &JSONL{file: f}
	if err := s.index(); err != nil {
		f.Close()
		return nil, fmt.Errorf("index %s: %w", path, err)
	}
	return s, nil
}

func (s *JSONL) index() error {
	r := bufio.NewReaderSize(s.file, 256*1024)
	var offset int64
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			if n := len(bytes.TrimSpace(line)); n > 0 {
				s.offsets = append(s.offsets, offset)
				s.lengths = append(s.lengths, len(line))
			}
			offset += int64(len(line))
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (s *JSONL) Count(ctx context.Context) (int64, error) {
	return int64(len(s.offsets)), nil
}

func (s *JSONL) Load(ctx context.Context, index int64, ev *model.Event) error {
	if err := checkIndex(index, int64(len(s.offsets))); err != nil {
		return err
	}

	n := s.lengths[index]
	if cap(s.buf) < n {
		s.buf = make([]byte, n)
	}
	line := s.buf[:n]
	if _, err := s.file.ReadAt(line, s.offsets[index]); err != nil && err != io.EOF {
		return err
	}

	var obj map[string]any
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return fmt.Errorf("event %d: %w", index, err)
	}

	for column, v := range obj {
		if err := setValue(ev, column, v); err != nil {
			return fmt.Errorf("event %d: %w", index, err)
		}
	}
	return nil
}

func (s *JSONL) Close() error {
	return s.file.Close()
}
