// Package sseclient consumes a Server-Sent Events endpoint.
//
// A Subscription opens exactly one connection, keeps only the latest
// payload and hands every message to an optional handler. It never
// reconnects: a transport failure ends it in StateClosedError and Close
// ends it in StateClosedNormal.
//
//	sub, err := sseclient.New(sseclient.Config{URL: "http://localhost:3000/sse/ev1"},
//		sseclient.WithHandler(func(ev sseclient.Event) { fmt.Println(ev.Data) }))
//	if err := sub.Open(ctx); err != nil { ... }
//	defer sub.Close()
package sseclient
