// Package oob provides the out-of-band token used to bootstrap trust on
// the companion link.
//
// A Token is a symmetric authenticated-encryption capability whose key
// material was established over a channel separate from the main
// wireless link, such as a wired accessory session. The v4 handshake
// refuses to send identity-bearing payloads without one.
//
// Tokens are sourced through a TokenProvider. Two strategies exist:
//
//   - PassiveProvider serves tokens pushed to it externally.
//   - SessionProvider listens on a live accessory side channel and
//     caches the token parsed from its wire message.
//
// Both enforce the exactly-once completion contract mechanically: a
// request's completion fires exactly once, with the token or with nil,
// regardless of how arrival, Reset, and Invalidate interleave.
package oob
