package export

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/redirscan/internal/heuristics"
	"github.com/nao1215/redirscan/internal/model"
)

// MarkdownWriter outputs a shareable Markdown document.
type MarkdownWriter struct {
	baseWriter
	title cases.Caser
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		title:      cases.Title(language.English),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.Report) (int, error) {
	if err := checkReport(report); err != nil {
		return 0, err
	}
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeChain(md, report.Chain)
	w.writeIndicators(md, report)
	w.writeTracking(md, report.Security)
	w.writeEnrichments(md, report)
	w.writeHistory(md, report.History)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.Report) {
	chain := report.Chain
	md.H1("Redirect Chain Report")
	md.PlainText("")

	rows := [][]string{
		{"Initial URL", "`" + chain.InitialURL + "`"},
		{"Final URL", "`" + chain.Final.URL + "`"},
		{"Final Status", strconv.Itoa(chain.Final.StatusCode)},
		{"Redirects", strconv.Itoa(chain.HopCount)},
		{"Total Time", strconv.FormatInt(chain.TotalElapsedMs, 10) + " ms"},
		{"HTTPS Upgraded", yesNo(chain.HTTPSUpgraded)},
		{"Risk", w.title.String(report.RiskLevel.String()) + " (score " + strconv.Itoa(report.RiskScore) + ")"},
	}
	if !report.AnalyzedAt.IsZero() {
		rows = append(rows, []string{"Analyzed At", report.AnalyzedAt.UTC().Format("2006-01-02 15:04:05 MST")})
	}
	md.Table(markdown.TableSet{Header: []string{"Property", "Value"}, Rows: rows})
	md.PlainText("")

	switch report.RiskLevel {
	case model.RiskHigh:
		md.Cautionf("High risk: %d suspicious indicator(s) with a combined score of %d.",
			len(report.Security.SuspiciousIndicators), report.RiskScore)
	case model.RiskMedium:
		md.Warningf("Medium risk: %d suspicious indicator(s) with a combined score of %d.",
			len(report.Security.SuspiciousIndicators), report.RiskScore)
	default:
		md.Tip("Low risk. No significant indicators raised.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeChain(md *markdown.Markdown, chain *model.ChainResult) {
	md.H2("Redirect Chain")
	md.PlainText("")

	rows := make([][]string, 0, len(chain.Hops)+1)
	for _, hop := range chain.Hops {
		rows = append(rows, []string{
			strconv.Itoa(hop.Step),
			strconv.Itoa(hop.StatusCode),
			"`" + hop.URL + "`",
			strconv.FormatInt(hop.ElapsedMs, 10),
			dash(hop.Server),
		})
	}
	rows = append(rows, []string{
		"Final",
		strconv.Itoa(chain.Final.StatusCode),
		"`" + chain.Final.URL + "`",
		strconv.FormatInt(chain.Final.ElapsedMs, 10),
		dash(chain.Final.Server),
	})
	md.Table(markdown.TableSet{
		Header: []string{"Step", "Status", "URL", "Time (ms)", "Server"},
		Rows:   rows,
	})
	md.PlainText("")

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, strings.TrimSuffix(Diagram(&model.Report{Chain: chain}), "\n"))
	md.PlainText("")
}

func (w *MarkdownWriter) writeIndicators(md *markdown.Markdown, report *model.Report) {
	md.H2("Suspicious Indicators")
	md.PlainText("")

	if report.Security == nil || !report.Security.HasIndicators() {
		md.PlainText("No suspicious indicators detected.")
		md.PlainText("")
		return
	}

	weights := heuristics.Weights()
	rows := make([][]string, 0, len(report.Security.SuspiciousIndicators))
	chart := piechart.NewPieChart(io.Discard,
		piechart.WithTitle("Risk Score Contribution"),
		piechart.WithShowData(true),
	)
	scored := false
	for _, indicator := range report.Security.SuspiciousIndicators {
		weight := weights[indicator]
		rows = append(rows, []string{indicator, strconv.Itoa(weight)})
		if weight > 0 {
			chart.LabelAndIntValue(indicator, uint64(weight)) //nolint:gosec // weights are non-negative
			scored = true
		}
	}
	md.Table(markdown.TableSet{Header: []string{"Indicator", "Weight"}, Rows: rows})
	md.PlainText("")

	if scored {
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}
	if len(report.Security.IDNHosts) > 0 {
		idn := make([]string, 0, len(report.Security.IDNHosts))
		for _, h := range report.Security.IDNHosts {
			idn = append(idn, "`"+h.ASCII+"` displays as `"+h.Unicode+"`")
		}
		md.BulletList(idn...)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeTracking(md *markdown.Markdown, security *model.SecurityAnalysis) {
	if security == nil || len(security.TrackingParameters) == 0 {
		return
	}
	md.H2("Tracking Parameters")
	md.PlainText("")

	rows := make([][]string, 0, len(security.TrackingParameters))
	for _, p := range security.TrackingParameters {
		rows = append(rows, []string{p.Param, dash(p.Value), "`" + p.URL + "`"})
	}
	md.Table(markdown.TableSet{Header: []string{"Parameter", "Value", "URL"}, Rows: rows})
	md.PlainText("")
}

func (w *MarkdownWriter) writeEnrichments(md *markdown.Markdown, report *model.Report) {
	if dns := report.Chain.DNSInfo; dns != nil {
		md.H2("DNS")
		md.PlainText("")
		rows := [][]string{{"Host", dns.Host}, {"Addresses", strings.Join(dns.IPs, ", ")}}
		if len(dns.CNAMEs) > 0 {
			rows = append(rows, []string{"CNAME", strings.Join(dns.CNAMEs, ", ")})
		}
		for _, r := range dns.Reverse {
			rows = append(rows, []string{"PTR " + r.IP, strings.Join(r.Names, ", ")})
		}
		md.Table(markdown.TableSet{Header: []string{"Record", "Value"}, Rows: rows})
		md.PlainText("")
	}

	if report.Security == nil {
		return
	}
	if cert := report.Security.CertificateInfo; cert != nil {
		md.H2("Certificate")
		md.PlainText("")
		md.Table(markdown.TableSet{
			Header: []string{"Field", "Value"},
			Rows: [][]string{
				{"Subject", cert.Subject},
				{"Issuer", cert.Issuer},
				{"Valid From", cert.ValidFrom.UTC().Format("2006-01-02")},
				{"Valid To", cert.ValidTo.UTC().Format("2006-01-02")},
				{"Days Remaining", strconv.Itoa(cert.DaysRemaining)},
				{"Self-Signed", yesNo(cert.SelfSigned)},
				{"Fingerprint (SHA-256)", "`" + cert.Fingerprint + "`"},
				{"Serial", "`" + cert.Serial + "`"},
			},
		})
		md.PlainText("")
		if cert.Expired() {
			md.Warning("The certificate has expired.")
			md.PlainText("")
		}
	}

	if content := report.Security.ContentAnalysis; content != nil {
		md.H2("Content")
		md.PlainText("")
		flags := content.Flags()
		if len(flags) == 0 {
			flags = []string{"none"}
		}
		rows := [][]string{
			{"Title", dash(content.Title)},
			{"Findings", strings.Join(flags, ", ")},
			{"Forms", strconv.Itoa(content.Forms)},
			{"Body Hash (mmh3)", strconv.FormatInt(int64(content.BodyHash), 10)},
		}
		if len(content.Technologies) > 0 {
			rows = append(rows, []string{"Technologies", strings.Join(content.Technologies, ", ")})
		}
		md.Table(markdown.TableSet{Header: []string{"Field", "Value"}, Rows: rows})
		md.PlainText("")
		if len(content.ExternalResources) > 0 {
			md.Details("External resources", strings.Join(content.ExternalResources, "\n"))
			md.PlainText("")
		}
	}
}

func (w *MarkdownWriter) writeHistory(md *markdown.Markdown, history *model.HistoryDiff) {
	if history == nil {
		return
	}
	md.H2("Changes Since Last Analysis")
	md.PlainText("")
	if !history.Changed {
		md.PlainText("No changes detected.")
		md.PlainText("")
		return
	}
	rows := make([][]string, 0, len(history.Changes))
	for _, c := range history.Changes {
		rows = append(rows, []string{c.Type, c.Old, c.New})
	}
	md.Table(markdown.TableSet{Header: []string{"Field", "Previous", "Current"}, Rows: rows})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [redirscan](https://github.com/nao1215/redirscan)*")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
