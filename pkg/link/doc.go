// Package link caches the logical links a session attaches over its
// connection.
//
// Each well-known endpoint has at most one live link. The first request
// for an endpoint attaches it; later requests reuse the cached handle. When
// the peer signals a link-level fault, the handle's error subscription
// removes it from the cache so the next request attaches a fresh link.
// Subscriptions are explicit handles stored with each entry and released
// when the entry is dropped, so listeners never accumulate.
package link
