package clientconn_test

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/sigmavirus24/clientconn"
)

func ExampleNewConn() {
	conn, err := clientconn.NewConn("example.com/chat",
		clientconn.WithMessageHandler(func(msg string) {
			fmt.Println("received", msg)
		}),
		clientconn.WithCloseHandler(func(info clientconn.CloseInfo) {
			log.Printf("%s transport closed (%d %s)", info.Transport, info.Code, info.Text)
		}),
	)
	if err != nil {
		log.Fatal(err)
	}

	// queued until a transport is connected
	_ = conn.Send("hello")

	err = conn.Connect(context.Background(), func() {
		log.Println("connected")
	})
	if errors.Is(err, clientconn.ErrNoTransport) {
		log.Fatal("neither websocket nor polling is available")
	}
}
