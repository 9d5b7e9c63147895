package export

import (
	"errors"
	"fmt"
	"io"

	"github.com/nao1215/redirscan/internal/config"
	"github.com/nao1215/redirscan/internal/model"
)

// ErrUnknownFormat is returned by New for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown export format")

// Writer renders a report to its destination.
type Writer interface {
	// Write renders report and returns the number of bytes written.
	Write(report *model.Report) (int, error)
}

// New returns the Writer for a canonical export format name.
// ExportNone has no file artifact and is rejected like an unknown format.
func New(format string, output io.Writer) (Writer, error) {
	switch format {
	case config.ExportJSON:
		return NewJSONWriter(output, WithPrettyPrint()), nil
	case config.ExportCSV:
		return NewCSVWriter(output), nil
	case config.ExportDiagram:
		return NewDiagramWriter(output), nil
	case config.ExportMarkdown:
		return NewMarkdownWriter(output), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Extension returns the file extension used for a format, without the dot.
func Extension(format string) string {
	switch format {
	case config.ExportJSON:
		return "json"
	case config.ExportCSV:
		return "csv"
	case config.ExportDiagram:
		return "mmd"
	case config.ExportMarkdown:
		return "md"
	default:
		return "txt"
	}
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// countingWriter counts bytes for renderers that stream into the output.
type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}

// ErrNilReport is returned when a writer receives a report without a chain.
var ErrNilReport = errors.New("report has no chain")

func checkReport(report *model.Report) error {
	if report == nil || report.Chain == nil {
		return ErrNilReport
	}
	return nil
}
