// Package connmgr owns the set of upstream MCP client connections and their
// status: connect-with-retry, bounded exponential backoff, concurrency-bounded
// bulk initialize, concurrent-attempt deduplication, OAuth interception, and
// child-process restart-on-exit.
package connmgr
