package report

import (
	"io"

	"github.com/nao1215/secscan/internal/model"
)

// Writer renders one scan report, for a single seed URL, in one format.
type Writer interface {
	// Write renders report and returns the number of bytes written.
	Write(report *model.ScanReport) (int, error)
}

// MultiWriter renders a report through several Writers in order, for
// example a text summary on the terminal and a Markdown file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write stops at the first failing Writer. The byte count includes the
// output of every Writer that ran.
func (m *MultiWriter) Write(report *model.ScanReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter holds the destination shared by the format writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
