// Package sourcing holds the inquiry dispatch domain: sourcing inquiries, the
// batches that send them to suppliers or customers, the artifacts produced for
// each batch and the append-only history of resends.
package sourcing
