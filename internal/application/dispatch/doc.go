// Package dispatch sends batches of open sourcing inquiries to a supplier or
// a customer.
//
// A create request goes through these stages in order:
//
//  1. EligibilitySelector re-reads the requested inquiries and keeps those
//     that can still be sent in the chosen direction.
//  2. DocumentGenerator renders the XLSX sheet and the PDF letter in memory.
//  3. Transactor stamps the inquiries and inserts the batch with its lines in
//     one serializable transaction.
//  4. ArtifactPublisher uploads both artifacts and registers them.
//  5. Fanout delivers email and instant messages and reports per-channel
//     success.
//
// A resend reloads the lines of an existing batch and starts again at stage 2.
// It skips the transaction and appends a resend history entry.
//
// Service ties the stages together and honours optional idempotency keys.
package dispatch
