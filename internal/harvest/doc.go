// Package harvest defines the blog harvesting domain: the records produced by
// a crawl, the interfaces each pipeline stage implements, and the driver that
// walks an index chain and reconciles every post into durable storage.
package harvest
