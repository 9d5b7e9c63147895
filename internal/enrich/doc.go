// Package enrich provides the best-effort enrichments of a traced chain's
// final destination: DNS records, the observed TLS certificate and a
// pattern-based scan of the final HTML page.
//
// Enrichments are independent and run concurrently. A failing enrichment
// never fails the analysis; its result is simply nil.
package enrich
