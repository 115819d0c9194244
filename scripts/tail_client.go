// Package main runs a demo WebSocket client for the live event feed.
package main

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	scope := os.Getenv("SCOPE")

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/events/tail"}
	if scope != "" {
		u.RawQuery = "scope=" + url.QueryEscape(scope)
	}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("dial %s: %v", u.String(), err)
	}
	defer func() { _ = conn.Close() }()
	log.Printf("tailing %s", u.String())

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		_ = conn.Close()
		os.Exit(0)
	}()

	for {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			log.Fatalf("read: %v", err)
		}
		fmt.Printf("%v\n", msg)
	}
}
