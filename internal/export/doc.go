// Package export renders analysis reports.
//
// Every renderer is deterministic: the same report always produces the same
// bytes. Nothing reads the clock or random state while rendering; times that
// appear in the output come from the report itself.
//
// Formats:
//   - json: the structured report
//   - csv: one row per hop, a final row and a summary block
//   - diagram: a Mermaid flowchart of the chain
//   - markdown: a shareable document with tables and the diagram
//   - summary: the colored inline summary printed by the CLI
package export
