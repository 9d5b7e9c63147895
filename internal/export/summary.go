package export

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/redirscan/internal/model"
)

// SummaryWriter prints the inline human-readable summary.
type SummaryWriter struct {
	baseWriter

	// headers prints the response headers of every hop.
	headers bool

	title cases.Caser

	bold    *color.Color
	green   *color.Color
	yellow  *color.Color
	red     *color.Color
	cyan    *color.Color
	faint   *color.Color
	palette []*color.Color
}

// SummaryWriterOption configures a SummaryWriter.
type SummaryWriterOption func(*SummaryWriter)

// WithHeaders prints response headers per hop.
func WithHeaders(show bool) SummaryWriterOption {
	return func(w *SummaryWriter) {
		w.headers = show
	}
}

// WithColor forces colored output on or off, independent of the terminal.
func WithColor(enabled bool) SummaryWriterOption {
	return func(w *SummaryWriter) {
		for _, c := range w.palette {
			if enabled {
				c.EnableColor()
			} else {
				c.DisableColor()
			}
		}
	}
}

// NewSummaryWriter creates a SummaryWriter. Without WithColor, color follows
// fatih/color's terminal detection.
func NewSummaryWriter(output io.Writer, opts ...SummaryWriterOption) *SummaryWriter {
	w := &SummaryWriter{
		baseWriter: newBaseWriter(output),
		title:      cases.Title(language.English),
		bold:       color.New(color.Bold),
		green:      color.New(color.FgGreen),
		yellow:     color.New(color.FgYellow),
		red:        color.New(color.FgRed, color.Bold),
		cyan:       color.New(color.FgCyan),
		faint:      color.New(color.Faint),
	}
	w.palette = []*color.Color{w.bold, w.green, w.yellow, w.red, w.cyan, w.faint}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary of report.
func (w *SummaryWriter) Write(report *model.Report) (int, error) {
	if err := checkReport(report); err != nil {
		return 0, err
	}
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeChain(&sb, report.Chain)
	w.writeSecurity(&sb, report.Security)
	w.writeEnrichments(&sb, report)
	w.writeHistory(&sb, report.History)

	return io.WriteString(w.output, sb.String())
}

func (w *SummaryWriter) writeHeader(sb *strings.Builder, report *model.Report) {
	chain := report.Chain
	fmt.Fprintf(sb, "\n%s %s\n", w.bold.Sprint("Target:"), chain.InitialURL)
	fmt.Fprintf(sb, "%s %s (score %d)\n", w.bold.Sprint("Risk:  "),
		w.riskColor(report.RiskLevel).Sprint(w.title.String(report.RiskLevel.String())), report.RiskScore)
	fmt.Fprintf(sb, "%s %d in %dms", w.bold.Sprint("Hops:  "), chain.HopCount, chain.TotalElapsedMs)
	if chain.HTTPSUpgraded {
		sb.WriteString(", " + w.green.Sprint("upgraded to HTTPS"))
	}
	sb.WriteString("\n\n")
}

func (w *SummaryWriter) writeChain(sb *strings.Builder, chain *model.ChainResult) {
	sb.WriteString(w.bold.Sprint("Redirect chain") + "\n")
	for _, hop := range chain.Hops {
		fmt.Fprintf(sb, "  [%d] %s %s %s\n", hop.Step, w.statusColor(hop.StatusCode).Sprint(hop.StatusCode),
			hop.URL, w.faint.Sprintf("(%dms)", hop.ElapsedMs))
		w.writeHeaders(sb, hop.Headers)
	}

	final := chain.Final
	marker := w.green.Sprint("final")
	if final.Error {
		marker = w.red.Sprint("final, error")
	}
	fmt.Fprintf(sb, "  [%s] %s %s %s\n", marker, w.statusColor(final.StatusCode).Sprint(final.StatusCode),
		final.URL, w.faint.Sprintf("(%dms)", final.ElapsedMs))
	if final.Server != "" || final.ContentType != "" {
		fmt.Fprintf(sb, "        %s\n", w.faint.Sprint(strings.TrimSpace(final.Server+" "+final.ContentType)))
	}
	w.writeHeaders(sb, final.Headers)
	sb.WriteString("\n")
}

func (w *SummaryWriter) writeHeaders(sb *strings.Builder, headers map[string]string) {
	if !w.headers || len(headers) == 0 {
		return
	}
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(sb, "        %s %s\n", w.faint.Sprint(name+":"), headers[name])
	}
}

func (w *SummaryWriter) writeSecurity(sb *strings.Builder, security *model.SecurityAnalysis) {
	if security == nil {
		return
	}
	if security.HasIndicators() {
		sb.WriteString(w.bold.Sprint("Suspicious indicators") + "\n")
		for _, indicator := range security.SuspiciousIndicators {
			fmt.Fprintf(sb, "  %s %s\n", w.yellow.Sprint("[!]"), indicator)
		}
		for _, h := range security.IDNHosts {
			fmt.Fprintf(sb, "      %s displays as %s\n", h.ASCII, h.Unicode)
		}
		sb.WriteString("\n")
	}
	if len(security.TrackingParameters) > 0 {
		fmt.Fprintf(sb, "%s (%d)\n", w.bold.Sprint("Tracking parameters"), len(security.TrackingParameters))
		for _, p := range security.TrackingParameters {
			fmt.Fprintf(sb, "  %s=%s %s\n", w.cyan.Sprint(p.Param), p.Value, w.faint.Sprint(p.URL))
		}
		sb.WriteString("\n")
	}
}

func (w *SummaryWriter) writeEnrichments(sb *strings.Builder, report *model.Report) {
	if dns := report.Chain.DNSInfo; dns != nil {
		fmt.Fprintf(sb, "%s %s -> %s\n", w.bold.Sprint("DNS:"), dns.Host, strings.Join(dns.IPs, ", "))
		if len(dns.CNAMEs) > 0 {
			fmt.Fprintf(sb, "  cname %s\n", strings.Join(dns.CNAMEs, " -> "))
		}
		for _, r := range dns.Reverse {
			fmt.Fprintf(sb, "  ptr %s %s\n", r.IP, strings.Join(r.Names, ", "))
		}
	}
	if report.Security == nil {
		return
	}
	if cert := report.Security.CertificateInfo; cert != nil {
		days := w.green.Sprintf("%d days remaining", cert.DaysRemaining)
		if cert.Expired() {
			days = w.red.Sprintf("expired %d days ago", -cert.DaysRemaining)
		}
		fmt.Fprintf(sb, "%s %s, issued by %s, %s\n", w.bold.Sprint("Certificate:"), cert.Subject, cert.Issuer, days)
		if cert.SelfSigned {
			fmt.Fprintf(sb, "  %s\n", w.yellow.Sprint("self-signed"))
		}
	}
	if content := report.Security.ContentAnalysis; content != nil {
		flags := content.Flags()
		if len(flags) == 0 {
			flags = []string{"no findings"}
		}
		fmt.Fprintf(sb, "%s %s\n", w.bold.Sprint("Content:"), strings.Join(flags, ", "))
		if content.Title != "" {
			fmt.Fprintf(sb, "  title %q\n", content.Title)
		}
		if len(content.Technologies) > 0 {
			fmt.Fprintf(sb, "  technologies %s\n", strings.Join(content.Technologies, ", "))
		}
		if len(content.ExternalResources) > 0 {
			fmt.Fprintf(sb, "  %d external resources\n", len(content.ExternalResources))
		}
	}
}

func (w *SummaryWriter) writeHistory(sb *strings.Builder, history *model.HistoryDiff) {
	if history == nil || !history.Changed {
		return
	}
	sb.WriteString("\n" + w.bold.Sprint("Changed since last analysis") + "\n")
	for _, c := range history.Changes {
		fmt.Fprintf(sb, "  %s: %s -> %s\n", c.Type, c.Old, w.yellow.Sprint(c.New))
	}
}

func (w *SummaryWriter) riskColor(level model.RiskLevel) *color.Color {
	switch level {
	case model.RiskHigh:
		return w.red
	case model.RiskMedium:
		return w.yellow
	default:
		return w.green
	}
}

// statusColor follows the usual 2xx green, 3xx yellow, 4xx/5xx red scheme.
func (w *SummaryWriter) statusColor(status int) *color.Color {
	switch {
	case status >= 400:
		return w.red
	case status >= 300:
		return w.yellow
	default:
		return w.green
	}
}
