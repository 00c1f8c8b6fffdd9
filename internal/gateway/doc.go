// Package gateway implements the manager's request pipeline: bearer-token
// authentication, a cache-aside response cache in front of the upstream
// worker, and the reverse proxy to that worker.
//
// Filters are a closed set of kinds executed in ascending Order. Pre-phase
// kinds (Authenticate, CacheFetch) run before the upstream and may
// short-circuit; post-phase kinds (CacheUpdate) run after it.
package gateway
