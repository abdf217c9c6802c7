package trace

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

var ErrTraceWriterClosed = errors.New("jsonl trace writer is closed")

// record is the JSONL shape of a Step. Addresses and raw words are hex
// strings so lines can be matched against the text trace; accesses use
// the same tokens as the text trace.
type record struct {
	Cycle    uint64   `json:"cycle"`
	Instret  uint64   `json:"instret"`
	Hart     uint32   `json:"hart"`
	PC       string   `json:"pc"`
	Raw      string   `json:"raw"`
	Disasm   string   `json:"disasm,omitempty"`
	Accesses []string `json:"accesses,omitempty"`
}

func newRecord(s *Step) record {
	r := record{
		Cycle:   s.Cycle,
		Instret: s.Instret,
		Hart:    s.Hart,
		PC:      fmt.Sprintf("%08x", s.PC),
		Raw:     fmt.Sprintf("%08x", s.Raw),
		Disasm:  s.Disasm,
	}
	if len(s.Accesses) > 0 {
		r.Accesses = make([]string, len(s.Accesses))
		for i, a := range s.Accesses {
			r.Accesses[i] = a.String()
		}
	}
	return r
}

// JSONLTraceWriter mirrors the instruction trace as one JSON object per
// line. Harts commit concurrently; lines from one hart stay in retire
// order. The first write error sticks and is returned by every later call.
type JSONLTraceWriter struct {
	mu     sync.Mutex
	out    *bufio.Writer
	file   *os.File // owned when opened by NewJSONLTraceWriterFile
	lines  uint64
	err    error
	closed bool
}

// NewJSONLTraceWriter wraps w; Close flushes but does not close w.
func NewJSONLTraceWriter(w io.Writer) *JSONLTraceWriter {
	return &JSONLTraceWriter{out: bufio.NewWriterSize(w, 64*1024)}
}

// NewJSONLTraceWriterFile creates path and closes it on Close.
func NewJSONLTraceWriterFile(path string) (*JSONLTraceWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := NewJSONLTraceWriter(f)
	w.file = f
	return w, nil
}

func (w *JSONLTraceWriter) WriteStep(s *Step) error {
	line, err := json.Marshal(newRecord(s))
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrTraceWriterClosed
	}
	if w.err != nil {
		return w.err
	}
	if _, err := w.out.Write(append(line, '\n')); err != nil {
		w.err = fmt.Errorf("jsonl trace line %d: %w", w.lines+1, err)
		return w.err
	}
	w.lines++
	return nil
}

// Lines returns the number of records written.
func (w *JSONLTraceWriter) Lines() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lines
}

func (w *JSONLTraceWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.err
	if ferr := w.out.Flush(); err == nil {
		err = ferr
	}
	if w.file != nil {
		if cerr := w.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
