// Command blogharvest walks a blog's "older entries" chain once and reconciles
// every post it finds into the configured store.
//
// Usage:
//
//	blogharvest -config harvest.yaml
//
// Every setting can also come from HARVEST_* environment variables, for
// example HARVEST_DB_DSN or HARVEST_CRAWL_MAX_PAGES. The process exits 0 when
// the scan completes, even if individual posts failed, and 1 when startup or an
// index page fetch fails.
package main
