// Package anthropicclaude implements the pipe contract against the
// Anthropic messages API.
//
// The adapter handles:
//
//   - Request translation: model alias normalization via a data table,
//     leading system messages hoisted into the out-of-band system field,
//     content parts mapped to Anthropic content blocks with per-image and
//     aggregate size ceilings enforced before any upstream call, remote
//     images fetched and inlined as base64.
//
//   - Parameter hygiene: optional payload keys exist only when the caller or
//     a configured default supplied them, and temperature/top_p can never
//     appear together.
//
//   - Transport: one POST per call through an injectable http.RoundTripper,
//     with the dial phase bounded separately from the read phase so the two
//     timeout classes stay distinguishable. No automatic retries.
//
//   - Response translation: buffered bodies concatenate text blocks in
//     order; streams emit one chunk per text delta in arrival order, with
//     stop reason and usage tracked as bookkeeping. Blocks and events that
//     carry no text are inert, never faults.
package anthropicclaude
