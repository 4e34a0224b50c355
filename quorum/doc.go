// Package quorum decides the outcome of a request sent to a group of peers
// from the replies that come back, one by one and in any order.
//
// An Op is not safe for concurrent use. It is meant to be owned by a single
// goroutine, such as the executor of a correlation table, which serializes
// every call.
package quorum
