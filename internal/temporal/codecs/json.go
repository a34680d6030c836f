// Package codecs is a placeholder for payload codecs.
//
// A later phase needs:
//   - Encryption codec for sensitive fields (consultant contacts, rates)
//   - Compression codec for large payloads (full record sets on big projects)
//   - codec.PayloadCodec implementation registered on client.Options.DataConverter
package codecs
