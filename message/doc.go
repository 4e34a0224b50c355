// Package message defines what travels between a client and the groups of
// peers it talks to: the envelope, the kind tags and the typed payloads of
// every request and response.
//
// Everything is encoded in the protobuf wire format. Responses carry either a
// value or a google.rpc.Status describing the failure.
package message
