// Package transport provides the production signaling transport: a
// websocket client speaking to a store-and-forward relay. The relay
// addresses parties by opaque string addresses and delivers each party's
// messages in the order it observed them.
package transport
