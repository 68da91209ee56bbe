// Package proto defines the wire contract of the directory service: entries,
// the recursive filter query model and its canonical form, modify lists, the
// authentication negotiation messages, and the error taxonomy shared by every
// operation.
//
// Everything in this package is a pure value type. Nothing here performs I/O,
// holds locks, or logs; evaluation against stored entries and credential
// verification live behind collaborator interfaces in the directory and auth
// packages. The JSON encoding is externally tagged (every variant carries its
// name) to stay compatible with existing consumers of the protocol.
package proto
