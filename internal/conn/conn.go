package conn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jdf-id-au/jocap-reader/pkg"
)

var upgrader = websocket.Upgrader{
	WriteBufferSize: 1024 * 10,
	ReadBufferSize:  1024 * 10,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleConnection serves find/extract/fields requests over one
// websocket. Every request is read-only so connections share nothing.
func (app *App) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		pkg.ErrorLog(err)
		return
	}
	conn_id := uuid.New()
	pkg.InfoLog("New connection", conn_id)
	defer conn.Close()
	defer pkg.InfoLog("Connection closed", conn_id)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				pkg.ErrorLog("unexpected close", err)
			} else {
				pkg.DebugLog("connection closed", err)
			}
			return
		}

		var req WsRequest
		if err := json.Unmarshal(message, &req); err != nil {
			pkg.ErrorLog("parsing request", err)
			continue
		}
		pkg.DebugLog(conn_id, "request", req.Action)

		var res Response
		switch req.Action {
		case RequestActionFind:
			res = FindReqHandler(app, message)
		case RequestActionExtract:
			res = ExtractReqHandler(app, message)
		case RequestActionFields:
			res = FieldsReqHandler(app, message)
		default:
			res = NewErrorResponse(http.StatusBadRequest,
				fmt.Sprintf("Unknown action: %s", req.Action))
		}
		res.ReqId = req.ReqId

		if err := conn.WriteJSON(res); err != nil {
			pkg.ErrorLog("writing response", err)
			return
		}
	}
}

func (app *App) Listen(port int) {
	exit := make(chan os.Signal, 2)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	s := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		ReadTimeout:  0,
		WriteTimeout: 0,
	}

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	http.HandleFunc("/", app.HandleConnection)

	go func() {
		err := s.ListenAndServe()
		if err != http.ErrServerClosed {
			pkg.FatalLog(err)
		}
	}()

	pkg.InfoLog("jocap-reader serving", app.Dir, "on port", port)
	<-exit
	pkg.DebugLog("Shutting down...")
	s.Shutdown(context.Background())
}
