// Package relay implements a realtime middle tier between an end-user
// client and an upstream realtime conversational-model service.
//
// The relay owns two WebSocket connections and forwards a duplex stream of
// JSON events between them. On the way up (client to upstream) it rewrites
// session-configuration events so that the server's instructions, voice and
// tool schemas always win over whatever the client supplied. On the way down
// (upstream to client) it intercepts completed function-call items, runs the
// named server-side tool, and injects the tool's output back into the
// upstream conversation so the model can keep reasoning.
//
// # Usage
//
//	reg := relay.NewRegistry()
//	reg.Register(&relay.Tool{Schema: schema, Handler: handler})
//
//	session, err := relay.NewSession(&relay.SessionConfig{
//	    Endpoint:     "https://example.openai.azure.com",
//	    Deployment:   "gpt-4o-realtime-preview",
//	    APIKey:       key,
//	    Instructions: "Answer only from the knowledge base.",
//	    Tools:        reg,
//	})
//	if err != nil {
//	    return err
//	}
//
//	r := relay.New(session, clientConn)
//	err = r.Run(ctx) // blocks until either side closes
//
// One Relay serves exactly one client connection. Events whose type the
// relay does not inspect pass through byte-for-byte in both directions;
// non-JSON payloads are forwarded verbatim as opaque data.
package relay
