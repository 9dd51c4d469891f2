// Package crawler implements the quote crawl engine: a sequential walk over
// paginated listing pages, deduplication of the author links found along the
// way, and a bounded concurrent fetch of every unique author page.
//
// Engine.Run ties the pieces together. A failure during the walk aborts the
// crawl and discards the records gathered so far. Failures while resolving
// authors are isolated per reference and reported in CrawlResult.Failures
// next to the authors that did resolve.
package crawler
