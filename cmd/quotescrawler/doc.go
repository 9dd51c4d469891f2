// Package main hosts the quotes crawler entrypoint.
//
// A crawl walks the paginated quote listing from crawler.start_url, collecting
// every record and the author link scoped to it, then resolves each unique
// author page with bounded concurrency. Two JSON documents are written:
// quotes.json and authors.json.
//
// Destinations:
//   - output.dir (default ".") on the local filesystem, or "-" for stdout.
//   - storage.gcs_bucket uploads both documents under storage.prefix/<crawl id>.
//   - db.dsn additionally upserts the rows into Postgres.
//   - pubsub.project_id and pubsub.topic_name publish a completion message.
//
// Configuration comes from an optional YAML file and QUOTES_* environment
// variables (QUOTES_CRAWLER_AUTHOR_CONCURRENCY, QUOTES_DB_DSN, ...); flags
// override both. Logs go to stderr so stdout can carry documents.
//
// Exit status is non-zero when the walk fails or any author page could not be
// resolved. In the latter case both documents are still written.
package main
