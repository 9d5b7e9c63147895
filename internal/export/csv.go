package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/redirscan/internal/model"
)

// csvHeader is the fixed header row.
var csvHeader = []string{"Step", "Status", "URL", "Time(ms)", "Server", "Content-Type", "Notes"}

// CSVWriter outputs one row per hop, a final destination row and a summary block.
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report as CSV.
func (w *CSVWriter) Write(report *model.Report) (int, error) {
	if err := checkReport(report); err != nil {
		return 0, err
	}
	chain := report.Chain

	counter := &countingWriter{w: w.output}
	cw := csv.NewWriter(counter)

	records := [][]string{csvHeader}
	for _, hop := range chain.Hops {
		records = append(records, []string{
			strconv.Itoa(hop.Step),
			strconv.Itoa(hop.StatusCode),
			hop.URL,
			strconv.FormatInt(hop.ElapsedMs, 10),
			hop.Server,
			hop.ContentType,
			hopNotes(hop),
		})
	}
	records = append(records, []string{
		"Final",
		strconv.Itoa(chain.Final.StatusCode),
		chain.Final.URL,
		strconv.FormatInt(chain.Final.ElapsedMs, 10),
		chain.Final.Server,
		chain.Final.ContentType,
		finalNotes(chain.Final),
	})

	records = append(records,
		[]string{},
		[]string{"Summary"},
		[]string{"Total Redirects", strconv.Itoa(chain.HopCount)},
		[]string{"Total Time (ms)", strconv.FormatInt(chain.TotalElapsedMs, 10)},
		[]string{"HTTPS Upgraded", strconv.FormatBool(chain.HTTPSUpgraded)},
	)
	if chain.DNSInfo != nil && len(chain.DNSInfo.IPs) > 0 {
		records = append(records, []string{"Resolved IPs", strings.Join(chain.DNSInfo.IPs, " ")})
	}
	records = append(records,
		[]string{"Risk Level", report.RiskLevel.String()},
		[]string{"Risk Score", strconv.Itoa(report.RiskScore)},
	)

	if err := cw.WriteAll(records); err != nil {
		return counter.n, err
	}
	return counter.n, nil
}

func hopNotes(hop model.Hop) string {
	note := "redirect"
	if hop.Location != "" {
		note += " to " + hop.Location
	}
	if hop.Scheme() == "http" && strings.HasPrefix(strings.ToLower(hop.Location), "https://") {
		note += "; https upgrade"
	}
	return note
}

func finalNotes(final model.FinalDestination) string {
	notes := []string{"success"}
	if final.Error {
		notes = []string{"error"}
	}
	if final.ContentAnalysis != nil {
		notes = append(notes, final.ContentAnalysis.Flags()...)
	}
	return strings.Join(notes, "; ")
}
