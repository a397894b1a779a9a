// Package vectorstore defines the boundary to the external vector database.
//
// Vectors are partitioned by namespace; the pipeline uses one namespace per
// category so categories never mix. Upsert is idempotent by identifier, which
// makes re-running a whole upload the recovery path after a partial failure.
//
// Implementations:
//
//   - vectorstore/upstash: Upstash Vector REST client
//   - vectorstore/mock: in-memory store for tests
package vectorstore
