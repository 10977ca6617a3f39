package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fitri99main/itongPOS-sub000/cmd/desktop/handlers"
	"github.com/fitri99main/itongPOS-sub000/internal/app"
	syncpkg "github.com/fitri99main/itongPOS-sub000/internal/sync"
)

// wireEvents pushes processor, queue and connectivity events to the hub.
// The returned function detaches the subscriptions.
func wireEvents(core *app.Core, hub *WSHub) func() {
	core.Processor.SetEventHandler(syncpkg.SyncEventHandlerFunc(hub.BroadcastSyncEvent))
	unsubscribeQueue := core.Queue.Subscribe(hub.BroadcastQueueEvent)
	unsubscribeMonitor := core.Monitor.Subscribe(hub.BroadcastConnectivity)
	return func() {
		core.Processor.SetEventHandler(nil)
		unsubscribeQueue()
		unsubscribeMonitor()
	}
}

// newRouter registers the local REST API.
func newRouter(core *app.Core, hub *WSHub) http.Handler {
	syncHandler := handlers.NewSyncHandler(core)
	queueHandler := handlers.NewQueueHandler(core.Queue)
	connectivityHandler := handlers.NewConnectivityHandler(core.Monitor, core.Host)
	checkoutHandler := handlers.NewCheckoutHandler(core.Checkout)
	transactionHandler := handlers.NewTransactionHandler(core.Remote)
	sessionHandler := handlers.NewSessionHandler(core.Sessions)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"itongpos-desktop"}`))
	})

	// the event socket is long-lived and stays outside the request timeout
	r.Get("/api/events", HandleWebSocket(hub))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/api/status", syncHandler.GetStatus)
		r.Post("/api/sync", syncHandler.TriggerSync)
		r.Get("/api/sync/history", syncHandler.GetHistory)
		r.Get("/api/sync/errors", syncHandler.GetErrors)
		r.Delete("/api/sync/errors", syncHandler.ClearErrors)

		r.Get("/api/queue", queueHandler.List)
		r.Get("/api/queue/quarantine", queueHandler.ListQuarantine)
		r.Post("/api/queue/quarantine/{id}/requeue", queueHandler.Requeue)
		r.Delete("/api/queue/quarantine/{id}", queueHandler.Discard)

		r.Get("/api/connectivity", connectivityHandler.Get)
		r.Put("/api/connectivity", connectivityHandler.SetOverride)
		r.Put("/api/connectivity/network", connectivityHandler.SetNetwork)

		r.Post("/api/checkout", checkoutHandler.Checkout)

		r.Get("/api/transactions", transactionHandler.List)
		r.Get("/api/transactions/{id}/items", transactionHandler.LineItems)

		r.Get("/api/session", sessionHandler.Get)
		r.Put("/api/session", sessionHandler.SignIn)
		r.Delete("/api/session", sessionHandler.SignOut)
	})

	return r
}
