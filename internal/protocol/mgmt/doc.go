// Package mgmt implements the router management protocol: query, create and
// delete requests for configuration entities carried in frame/tlv messages.
//
// Client is the agent side and satisfies reconcile.Gateway. Server exposes
// any Handler, such as the in-memory router, on a net.Listener.
package mgmt
