// Command cwse-client is a minimal CWSE client demo: it connects to a
// cwse-server websocket endpoint, subscribes a logging UX listener, and
// offers a tiny line-oriented REPL for creating shapes and invoking
// undo/redo, mostly useful for manual protocol verification.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/collabwhiteboard/cwse/internal/logging"
	"github.com/collabwhiteboard/cwse/pkg/bus"
	"github.com/collabwhiteboard/cwse/pkg/client"
	"github.com/collabwhiteboard/cwse/pkg/envelope"
	"github.com/collabwhiteboard/cwse/pkg/shape"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "server host:port")
	userID := flag.String("user", "", "this client's user id (default: random)")
	flag.Parse()

	clientID := *userID
	if clientID == "" {
		clientID = uuid.NewString()
	}

	zl, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer zl.Sync()
	logger := logging.New(zl)

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws", RawQuery: "client_id=" + clientID}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		logger.Error("dial failed", zap.Error(err))
		os.Exit(1)
	}
	defer conn.Close()

	wsBus := bus.NewWSBus()
	wsBus.AddClient(clientID, conn)

	comm := client.NewCommunicator(wsBus, clientID)
	mgr := client.NewManager(clientID, shape.LevelHigh, comm, client.WithLogger(logger))

	comm.Subscribe(mgr.OnMessageReceived)
	mgr.Subscribe("console", func(ux []envelope.UXShape) {
		for _, u := range ux {
			fmt.Printf("[ux] %s %s (checkpoint=%d source=%s)\n", u.UXOp, u.ShapeID, u.CheckpointNumber, u.SourceOp)
		}
	})

	fmt.Println("commands: create, undo, redo, quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "create":
			b := shape.BoardShape{
				ShapeID: uuid.NewString(),
				Shape: shape.Shape{
					Kind:   shape.KindRectangle,
					Points: []shape.Point{{X: 0, Y: 0}, {X: 10, Y: 10}},
				},
				LastModifiedAt: time.Now(),
			}
			if _, err := mgr.SaveOperation(envelope.OpCreate, b); err != nil {
				logger.Warn("create failed", zap.Error(err))
			}
		case "undo":
			if _, err := mgr.DoUndo(); err != nil {
				logger.Warn("undo failed", zap.Error(err))
			}
		case "redo":
			if _, err := mgr.DoRedo(); err != nil {
				logger.Warn("redo failed", zap.Error(err))
			}
		case "quit", "exit":
			return
		default:
			fmt.Println("unknown command")
		}
	}
}
