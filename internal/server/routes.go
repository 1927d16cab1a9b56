package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"questvote/internal/config"
	"questvote/internal/db"
	"questvote/internal/logger"
	"questvote/internal/metrics"
	"questvote/internal/narrator"
	"questvote/internal/rooms"
	"questvote/internal/wshub"
)

const archiveBuffer = 1000

func Run() error {
	appCfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(appCfg.LogLevel, appCfg.LogPretty)
	if !appCfg.LogPretty {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := New(appCfg, Deps{
		Logger:   log,
		Metrics:  metrics.New(reg),
		Gatherer: reg,
	})

	// Optional database connection
	if appCfg.DatabaseURL != "" {
		dbLog := logger.Component(log, "db")
		database, err := db.Connect(ctx, appCfg.DatabaseURL, dbLog)
		if err != nil {
			dbLog.Warn().Err(err).Msg("failed to connect, running without round archive")
		} else {
			if err := database.Migrate(ctx); err != nil {
				dbLog.Error().Err(err).Msg("migration failed")
			}
			srv.DB = database
			srv.Archive = db.NewArchiver(database, archiveBuffer, dbLog)

			// The archiver outlives the HTTP server so rounds finished during
			// shutdown are still written before the pool closes.
			archiveCtx, stopArchive := context.WithCancel(context.Background())
			go srv.Archive.Run(archiveCtx)
			defer func() {
				stopArchive()
				srv.Archive.Wait()
				database.Close()
			}()
		}
	} else {
		log.Info().Msg("DATABASE_URL not set, running without round archive")
	}

	go srv.Rooms.RunSweeper(ctx, appCfg.RoomSweepInterval)

	httpSrv := &http.Server{
		Addr:              "0.0.0.0:" + appCfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpSrv.Addr).Msg("server listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// Deps carries collaborators that tests may replace.
type Deps struct {
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Narrator narrator.Narrator
	Roller   narrator.Roller
	Now      func() time.Time
}

// New wires the hub and the room store. The database is attached by the caller.
func New(cfg config.Config, deps Deps) *Server {
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.NewRegistry()
	}
	s := &Server{
		Config:   cfg,
		Metrics:  deps.Metrics,
		Gatherer: deps.Gatherer,
		Log:      logger.Component(deps.Logger, "server"),
	}
	s.Hub = wshub.NewHub(deps.Metrics, logger.Component(deps.Logger, "hub"))
	s.Rooms = rooms.NewStore(rooms.Options{
		WelcomePrompt:           cfg.WelcomePrompt,
		GateActionsDuringVoting: cfg.GateActionsDuringVoting,
		IdleTTL:                 cfg.RoomIdleTTL,
		Narrator:                deps.Narrator,
		Roller:                  deps.Roller,
		Notifier:                s.Hub,
		Metrics:                 deps.Metrics,
		Logger:                  logger.Component(deps.Logger, "rooms"),
		OnRoundComplete:         s.archiveRound,
		Now:                     deps.Now,
	})
	return s
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), cors.New(s.corsConfig()))

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{})))

	r.POST("/room", s.handleCreateRoom)
	r.GET("/room/:code", s.handleRoom)
	r.DELETE("/room/:code", s.handleDeleteRoom)
	r.POST("/room/:code/join", s.handleJoinRoom)
	r.POST("/room/:code/action", s.handleAction)
	r.POST("/room/:code/vote", s.handleVote)
	r.POST("/room/:code/next", s.handleNextRound)
	r.POST("/room/:code/roll", s.handleRoll)
	r.GET("/room/:code/history", s.handleHistory)
	return r
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	if len(s.Config.AllowedOrigins) == 0 || slices.Contains(s.Config.AllowedOrigins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.Config.AllowedOrigins
	}
	return cfg
}

// originPatterns turns the configured origins into websocket host patterns.
func (s *Server) originPatterns() []string {
	var patterns []string
	for _, o := range s.Config.AllowedOrigins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, o)
	}
	return patterns
}

func (s *Server) archiveRound(r rooms.RoundSummary) {
	if s.Archive == nil {
		return
	}
	s.Archive.Enqueue(db.RoundRecord{
		RoomCode:      r.RoomCode,
		Round:         r.Round,
		Prompt:        r.Prompt,
		WinningPlayer: r.WinningAction.PlayerID,
		WinningAction: r.WinningAction.Text,
		Votes:         r.Tally,
		Roll:          r.Roll,
		NextPrompt:    r.NextPrompt,
		CompletedAt:   r.CompletedAt,
	})
}
