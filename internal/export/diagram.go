package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/redirscan/internal/model"
)

// Node style classes of the diagram.
const (
	ClassInitial  = "initial"
	ClassRedirect = "redirect"
	ClassSuccess  = "success"
	ClassError    = "error"
)

// classDefs are emitted in this order.
var classDefs = []struct {
	name  string
	style string
}{
	{ClassInitial, "fill:#e3f2fd,stroke:#1565c0,stroke-width:2px"},
	{ClassRedirect, "fill:#fff8e1,stroke:#f9a825"},
	{ClassSuccess, "fill:#e8f5e9,stroke:#2e7d32,stroke-width:2px"},
	{ClassError, "fill:#ffebee,stroke:#c62828,stroke-width:2px"},
}

// DiagramWriter outputs the chain as a Mermaid flowchart.
type DiagramWriter struct {
	baseWriter
}

// NewDiagramWriter creates a DiagramWriter that outputs to the given writer.
func NewDiagramWriter(output io.Writer) *DiagramWriter {
	return &DiagramWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the Mermaid flowchart of the report.
func (w *DiagramWriter) Write(report *model.Report) (int, error) {
	if err := checkReport(report); err != nil {
		return 0, err
	}
	return io.WriteString(w.output, Diagram(report))
}

// Diagram renders the Mermaid flowchart of a report. The first node is the
// initial URL, each edge is one response labeled "{status} ({ms}ms)" and the
// last node is the final destination.
func Diagram(report *model.Report) string {
	chain := report.Chain
	var sb strings.Builder

	sb.WriteString("graph TD\n")

	nodes := len(chain.Hops) + 1
	for i := 0; i < nodes; i++ {
		var (
			url   string
			class string
		)
		switch {
		case i < len(chain.Hops):
			url = chain.Hops[i].URL
			class = ClassRedirect
			if i == 0 {
				class = ClassInitial
			}
		default:
			url = chain.Final.URL
			class = ClassSuccess
			if chain.Final.Error {
				class = ClassError
			}
		}
		fmt.Fprintf(&sb, "    N%d[\"%s\"]:::%s\n", i, escapeMermaid(url), class)
	}

	for i, hop := range chain.Hops {
		fmt.Fprintf(&sb, "    N%d -->|\"%d (%dms)\"| N%d\n", i, hop.StatusCode, hop.ElapsedMs, i+1)
	}
	fmt.Fprintf(&sb, "    N%d -.->|\"%d (%dms)\"| RESULT((\"%s\"))\n",
		nodes-1, chain.Final.StatusCode, chain.Final.ElapsedMs, finalLabel(chain.Final))

	sb.WriteString("    subgraph Summary\n")
	fmt.Fprintf(&sb, "        S1[\"Total redirects: %d\"]\n", chain.HopCount)
	fmt.Fprintf(&sb, "        S2[\"Total time: %dms\"]\n", chain.TotalElapsedMs)
	fmt.Fprintf(&sb, "        S3[\"HTTPS upgraded: %s\"]\n", yesNo(chain.HTTPSUpgraded))
	fmt.Fprintf(&sb, "        S4[\"Risk: %s (score %d)\"]\n", report.RiskLevel, report.RiskScore)
	if report.Security != nil && len(report.Security.SuspiciousIndicators) > 0 {
		fmt.Fprintf(&sb, "        S5[\"Indicators: %d\"]\n", len(report.Security.SuspiciousIndicators))
	}
	sb.WriteString("    end\n")

	for _, def := range classDefs {
		fmt.Fprintf(&sb, "    classDef %s %s\n", def.name, def.style)
	}
	return sb.String()
}

func finalLabel(final model.FinalDestination) string {
	if final.Error {
		return "error"
	}
	return "ok"
}

// escapeMermaid makes s safe inside a quoted Mermaid label.
func escapeMermaid(s string) string {
	return strings.NewReplacer(`"`, "#quot;", "\n", " ").Replace(s)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
