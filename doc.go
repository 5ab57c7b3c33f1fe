// Package clientconn provides an ordered, message-oriented connection to a
// remote endpoint over either a WebSocket or, when that cannot be
// established, HTTP polling.
//
// Create a Conn with the endpoint address and a handler for inbound
// messages
//
//	conn, err := clientconn.NewConn("example.com:8080/chat",
//		clientconn.WithMessageHandler(func(msg string) {
//			fmt.Println("received", msg)
//		}),
//	)
//
// Messages sent before Connect are queued and delivered in order once a
// transport is up
//
//	_ = conn.Send("hello")
//	if err := conn.Connect(ctx, func() { log.Println("ready") }); err != nil {
//		// every transport failed; err is a clientconn.NoTransportError
//	}
//
// The socket transport dials wss://address and the polling transport posts to
// https://address by default. Either can be changed or turned off
//
//	conn, err := clientconn.NewConn("localhost:8080",
//		clientconn.WithSocketScheme("ws"),
//		clientconn.WithPollScheme("http"),
//		clientconn.WithoutSocketTransport(),
//		clientconn.WithMessageHandler(handle),
//	)
//
// The polling transport POSTs a JSON array of queued messages every 500ms and
// receives a JSON array of frames back. Frames starting with "sessionID "
// assign the session that is echoed at the head of every later request;
// frames starting with "(partial) " and "(partialEnd) " are fragments of one
// message and are joined before delivery. The handler only ever sees whole
// messages.
//
// A dropped socket is reported to the CloseHandler and is not redialed
// automatically; call Reconnect to restore it.
package clientconn
