package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ankushKun/subspace-prod-sub001/client"
	"github.com/ankushKun/subspace-prod-sub001/internal/db"
	"github.com/ankushKun/subspace-prod-sub001/internal/remote"
	"github.com/ankushKun/subspace-prod-sub001/internal/wallet"
	"github.com/gorilla/mux"
	"github.com/tryfix/log"
)

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := log.Constructor.Log(
		log.WithColors(true),
		log.WithLevel(log.Level(env("SUBSPACE_LOG_LEVEL", "INFO"))),
		log.WithFilePath(false),
	)

	gatewayURL := env("SUBSPACE_GATEWAY_URL", "wss://gateway.subspace.ar.io/ws")
	listenAddr := env("SUBSPACE_LISTEN", "127.0.0.1:8337")

	configDir := env("SUBSPACE_CONFIG_DIR", filepath.Join(os.Getenv("HOME"), ".config", "subspace"))
	if err := os.MkdirAll(configDir, 0700); err != nil {
		logger.Fatal(fmt.Sprintf("failed to create config directory: %v", err))
	}

	store, err := db.NewStore(filepath.Join(configDir, "client.db"))
	if err != nil {
		logger.Fatal(fmt.Sprintf("failed to open database: %v", err))
	}
	defer store.Close()

	conn := loadWalletConnection(store, logger)
	signer, err := wallet.NewSigner(conn, 10*time.Minute)
	if err != nil {
		logger.Fatal(fmt.Sprintf("failed to load wallet signer: %v", err))
	}

	address := ""
	if conn != nil && conn.Connected {
		address = conn.Address
	}

	gateway := remote.NewGateway(gatewayURL, address, signer, logger)
	if address != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := gateway.Connect(ctx); err != nil {
			logger.Error(fmt.Sprintf("failed to connect to gateway: %v", err))
		}
		cancel()
	}

	coord := client.NewCoordinator(client.DefaultConfig(), gateway, store, logger)
	handler := client.NewHandler(coord, logger)

	r := mux.NewRouter()
	handler.Register(r)
	registerWalletRoutes(r, coord, store, logger)

	if address != "" {
		coord.Bind(context.Background(), address)
	}

	httpServer := &http.Server{Addr: listenAddr, Handler: r}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("shutting down")
		httpServer.Shutdown(context.Background())
		if err := coord.Flush(); err != nil {
			logger.Error(fmt.Sprintf("failed to persist cache on shutdown: %v", err))
		}
		gateway.Close()
	}()

	logger.Info(fmt.Sprintf("subspace client listening on http://%s", listenAddr))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal(fmt.Sprintf("server error: %v", err))
	}
}

func loadWalletConnection(store *db.Store, logger log.Logger) *wallet.Connection {
	data, err := store.GetDocument(db.DocWalletConnection)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to load wallet connection: %v", err))
		return nil
	}
	if data == nil {
		return nil
	}
	var conn wallet.Connection
	if err := json.Unmarshal(data, &conn); err != nil {
		logger.Warn(fmt.Sprintf("discarding malformed wallet connection: %v", err))
		return nil
	}
	return &conn
}

// registerWalletRoutes exposes bind/unbind so a UI can switch wallets at
// runtime. Binding persists the wallet-connection document and rebinds
// the coordinator; provider handshakes happen outside this daemon.
func registerWalletRoutes(r *mux.Router, coord *client.Coordinator, store *db.Store, logger log.Logger) {
	r.HandleFunc("/api/wallet", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			conn := loadWalletConnection(store, logger)
			if conn == nil {
				conn = &wallet.Connection{}
			}
			conn.JWK = nil // never serve key material
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(conn)

		case http.MethodPost:
			var conn wallet.Connection
			if err := json.NewDecoder(req.Body).Decode(&conn); err != nil || conn.Address == "" {
				http.Error(w, "invalid request", http.StatusBadRequest)
				return
			}
			conn.Connected = true
			data, _ := json.Marshal(conn)
			if err := store.SetDocument(db.DocWalletConnection, data); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			coord.Bind(req.Context(), conn.Address)
			w.WriteHeader(http.StatusNoContent)

		case http.MethodDelete:
			if err := store.DeleteDocument(db.DocWalletConnection); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			coord.Unbind()
			w.WriteHeader(http.StatusNoContent)

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}).Methods(http.MethodGet, http.MethodPost, http.MethodDelete)
}
