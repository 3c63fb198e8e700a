package main

import (
	"net/http"

	"github.com/CodedInternet/carnode/comms"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// CommandHandler runs a websocket command session against the conductor.
func CommandHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ENV.Logger.Print("upgrade:", err)
		return
	}
	defer conn.Close()

	comms.ServeCommands(conn, ENV.Conductor, ENV.Logger)
}

// StatusHandler streams status snapshots to the client.
func StatusHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ENV.Logger.Print("upgrade:", err)
		return
	}
	defer conn.Close()

	comms.StreamStatus(r.Context(), conn, ENV.Conductor.Vehicle, comms.STATUS_INTERVAL)
}
