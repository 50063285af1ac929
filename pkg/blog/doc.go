// Package blog provides the content store behind the blog API: posts,
// categories, comments and the per-user back-references that tie them
// together.
//
// A single Service interface orchestrates every operation. Persistence is
// delegated to a Repository (memory, Postgres and MongoDB implementations are
// provided under repo/) and uploaded files to a BlobStore (memory, local
// filesystem and S3 under storage/).
//
// Relationship Maintenance
//
// Posts, categories, comments and users reference each other by id in both
// directions. Each operation that touches more than one document runs inside
// Repository.RunInTx so a failure part way through leaves no partial writes
// behind. Events are delivered to the EventSink only after the transaction
// commits.
package blog
