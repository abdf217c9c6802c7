package trace

import (
	"bufio"
	"io"
	"sync"
)

// Writer receives steps from every hart and emits the text line and, when
// configured, the JSONL mirror.
type Writer struct {
	mu    sync.Mutex
	text  *bufio.Writer
	jsonl *JSONLTraceWriter
	count uint64
}

// NewWriter writes text lines to text (may be nil) and JSON lines to jsonl
// (may be nil).
func NewWriter(text io.Writer, jsonl *JSONLTraceWriter) *Writer {
	w := &Writer{jsonl: jsonl}
	if text != nil {
		w.text = bufio.NewWriterSize(text, 64*1024)
	}
	return w
}

func (w *Writer) Commit(s *Step) error {
	w.mu.Lock()
	w.count++
	if w.text != nil {
		w.text.WriteString(s.Line())
		w.text.WriteByte('\n')
	}
	w.mu.Unlock()
	if w.jsonl != nil {
		return w.jsonl.WriteStep(s)
	}
	return nil
}

// Steps returns the number of committed steps.
func (w *Writer) Steps() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

func (w *Writer) Close() error {
	w.mu.Lock()
	var err error
	if w.text != nil {
		err = w.text.Flush()
	}
	w.mu.Unlock()
	if w.jsonl != nil {
		if cerr := w.jsonl.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
