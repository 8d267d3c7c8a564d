// Command server runs the poker bot game server: a gin HTTP router
// exposing a websocket endpoint per table, a REST surface for table
// management, and a Prometheus /metrics endpoint, grounded in the
// teacher's cmd/game-server/main.go GameServer wiring.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pokerbotserver/internal/auth"
	"pokerbotserver/internal/controller"
	"pokerbotserver/internal/directory"
	"pokerbotserver/internal/engine"
	"pokerbotserver/internal/replay"
	"pokerbotserver/internal/session"
	"pokerbotserver/internal/transport"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // development default; put a real allowlist behind a proxy in production
	},
}

// Server wires the table registry, bot authenticator, and connection
// tracker behind gin's router.
type Server struct {
	registry *controller.Controller
	auth     auth.BotAuth
	conns    *controller.ConnectionRegistry
}

func newServer(reg *controller.Controller, botAuth auth.BotAuth) *Server {
	s := &Server{registry: reg, auth: botAuth}
	s.conns = controller.NewConnectionRegistry(func(connID string) {
		log.Printf("server: evicting inactive connection %s", connID)
	})
	return s
}

func (s *Server) handleWebSocket(c *gin.Context) {
	tableID := c.Param("tableId")
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("server: websocket upgrade failed: %v", err)
		return
	}

	connID := fmt.Sprintf("%s-%d", tableID, time.Now().UnixNano())
	conn := transport.NewWSConn(connID, ws)
	s.conns.Touch(connID)
	defer s.conns.Forget(connID)

	dispatcher := session.NewDispatcher(conn, s.registry, s.auth)
	dispatcher.Run()
}

func (s *Server) createTable(c *gin.Context) {
	var req struct {
		TableID          string `json:"tableId"`
		MaxPlayers       int    `json:"maxPlayers"`
		SmallBlindAmount int64  `json:"smallBlind"`
		BigBlindAmount   int64  `json:"bigBlind"`
		TurnTimeLimitMS  int64  `json:"turnTimeLimitMs"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	cfg := engine.DefaultTableConfig(req.TableID)
	if req.MaxPlayers > 0 {
		cfg.MaxPlayers = req.MaxPlayers
	}
	if req.SmallBlindAmount > 0 {
		cfg.SmallBlindAmount = req.SmallBlindAmount
	}
	if req.BigBlindAmount > 0 {
		cfg.BigBlindAmount = req.BigBlindAmount
	}
	if req.TurnTimeLimitMS > 0 {
		cfg.TurnTimeLimit = time.Duration(req.TurnTimeLimitMS) * time.Millisecond
	}

	if err := s.registry.CreateGame(cfg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tableId": req.TableID})
}

func (s *Server) listTables(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tables": s.registry.ListGames()})
}

func (s *Server) tableState(c *gin.Context) {
	tableID := c.Param("tableId")
	state, err := s.registry.GameState(tableID, "")
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, state)
}

func main() {
	reg := controller.New()

	botAuth := buildAuth()

	if sink := buildReplaySink(); sink != nil {
		log.Printf("server: replay sink configured, every table gets its own recorder")
		reg.SetReplaySink(sink)
	}

	if dir := buildDirectory(); dir != nil {
		reg.SetDirectory(dir)
	}

	srv := newServer(reg, botAuth)

	router := gin.Default()
	router.GET("/ws/:tableId", srv.handleWebSocket)
	router.GET("/api/tables", srv.listTables)
	router.GET("/api/tables/:tableId", srv.tableState)
	router.POST("/api/tables", srv.createTable)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("server: shutting down")
		os.Exit(0)
	}()

	port := os.Getenv("GAME_SERVER_PORT")
	if port == "" {
		port = "3002"
	}

	log.Printf("server: listening on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server: failed to start: %v", err)
	}
}

// buildAuth loads bot credentials from BOT_API_KEYS ("botID:key,..."),
// falling back to an empty StaticAuth (every identify is rejected) if
// unset, rather than silently accepting unauthenticated bots.
func buildAuth() auth.BotAuth {
	raw := os.Getenv("BOT_API_KEYS")
	keys := make(map[string]string)
	for _, pair := range splitNonEmpty(raw, ",") {
		kv := splitNonEmpty(pair, ":")
		if len(kv) != 2 {
			continue
		}
		keys[kv[0]] = kv[1]
	}
	return auth.NewStaticAuth(keys)
}

// buildReplaySink builds a sink from whichever of
// REPLAY_CLICKHOUSE_HOST / REPLAY_KAFKA_BROKERS is configured: nil when
// neither is, the single sink when one is, a FanoutSink when both are.
// Callers attach a replay.Recorder per table to it.
func buildReplaySink() replay.Sink {
	var sinks []replay.Sink

	if host := os.Getenv("REPLAY_CLICKHOUSE_HOST"); host != "" {
		port, _ := strconv.Atoi(os.Getenv("REPLAY_CLICKHOUSE_PORT"))
		if port == 0 {
			port = 9000
		}
		cfg := replay.ClickHouseConfig{
			Host:     host,
			Port:     port,
			Database: envOr("REPLAY_CLICKHOUSE_DB", "poker"),
			Username: os.Getenv("REPLAY_CLICKHOUSE_USER"),
			Password: os.Getenv("REPLAY_CLICKHOUSE_PASSWORD"),
		}
		sink, err := replay.NewClickHouseSink(context.Background(), cfg)
		if err != nil {
			log.Printf("server: clickhouse replay sink disabled: %v", err)
		} else {
			sinks = append(sinks, sink)
		}
	}

	if brokers := os.Getenv("REPLAY_KAFKA_BROKERS"); brokers != "" {
		cfg := replay.KafkaSinkConfig{
			Brokers: splitNonEmpty(brokers, ","),
			Topic:   envOr("REPLAY_KAFKA_TOPIC", "poker.hand_events"),
		}
		sink, err := replay.NewKafkaSink(cfg)
		if err != nil {
			log.Printf("server: kafka replay sink disabled: %v", err)
		} else {
			sinks = append(sinks, sink)
		}
	}

	switch len(sinks) {
	case 0:
		return nil
	case 1:
		return sinks[0]
	default:
		return replay.NewFanoutSink(sinks...)
	}
}

// buildDirectory opens a Postgres-backed directory.Store from
// DIRECTORY_POSTGRES_DSN if set, otherwise the controller runs with no
// directory (gameplay is unaffected either way).
func buildDirectory() directory.Store {
	dsn := os.Getenv("DIRECTORY_POSTGRES_DSN")
	if dsn == "" {
		return nil
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Printf("server: directory store disabled: %v", err)
		return nil
	}
	store := directory.NewPostgresStore(db)
	if err := store.CreateTableDirectory(context.Background()); err != nil {
		log.Printf("server: directory.CreateTableDirectory failed: %v", err)
	}
	return store
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitNonEmpty(s string, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
