// Command walbroadcaster streams WAL from a primary Postgres server to a
// quorum of safekeepers, computing the quorum-committed LSN and feeding it
// back to the primary as standby status feedback.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pgdisagg/walbroadcaster/internal/broadcast"
	"github.com/pgdisagg/walbroadcaster/internal/config"
	"github.com/pgdisagg/walbroadcaster/internal/health"
	"github.com/pgdisagg/walbroadcaster/internal/logging"
	"github.com/pgdisagg/walbroadcaster/internal/metrics"
	"github.com/pgdisagg/walbroadcaster/internal/statusfeed"
	"github.com/pgdisagg/walbroadcaster/internal/upstream"
	"github.com/pgdisagg/walbroadcaster/internal/wire"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, _, err := config.ParseFlags(os.Args[1:], os.Stderr)
	switch {
	case err == config.ErrHelpRequested || err == config.ErrVersionRequested:
		return 0
	case err != nil:
		fmt.Fprintln(os.Stderr, "walbroadcaster:", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "walbroadcaster: invalid configuration:", err)
		return 1
	}
	if cfg.PromptPassword {
		pw, err := promptPassword()
		if err != nil {
			fmt.Fprintln(os.Stderr, "walbroadcaster: reading password:", err)
			return 1
		}
		cfg.Password = pw
	}

	log := logging.NewDefaultLogger()
	if cfg.Verbose {
		log.SetLevel(logging.DebugLevel)
	} else {
		log.SetLevel(logging.InfoLevel)
	}

	if cfg.TUI {
		return runTUIMode(cfg, log)
	}
	return runHeadless(cfg, log)
}

// session bundles everything a running broadcaster needs so headless mode
// and the TUI can share identical setup and differ only in what watches it.
type session struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      config.Config
	log      logging.Logger
	registry *metrics.Registry
	feed     *statusfeed.Feed
	checker  *health.Checker
	upConn   *upstream.Conn
	b        *broadcast.Broadcaster
	runErr   chan error

	walEvents chan broadcast.UpstreamEvent
	feedback  chan []byte
	ident     upstream.Identity
	segSize   uint64
}

func newSession(cfg config.Config, log logging.Logger) (*session, error) {
	ctx, cancel := context.WithCancel(context.Background())

	registry := metrics.NewRegistry()
	feed := statusfeed.New()
	checker := health.NewChecker()

	checker.RegisterLiveness("process", func() health.Check {
		return health.Check{Name: "process", Status: health.StatusHealthy}
	})
	checker.RegisterReadiness("upstream", health.UpstreamCheck(func() bool { return ctx.Err() == nil }))

	if cfg.MetricsAddr != "" {
		startMetricsServer(cfg.MetricsAddr, registry, log)
	}
	if cfg.HealthAddr != "" {
		startHealthServer(cfg.HealthAddr, checker, log)
	}

	connString := fmt.Sprintf("host=%s port=%d dbname=%s user=%s", cfg.Host, cfg.Port, cfg.DBName, cfg.Username)
	if cfg.Password != "" {
		connString += fmt.Sprintf(" password=%s", cfg.Password)
	}

	upConn, err := upstream.Connect(ctx, connString)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("connect to primary: %w", err)
	}

	ident, err := upConn.IdentifySystem(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("IDENTIFY_SYSTEM: %w", err)
	}
	log.Info("identified primary", logging.String("system_id", ident.SystemID), logging.String("timeline", fmt.Sprint(ident.Timeline)))

	// START_REPLICATION is deliberately not issued here: spec.md §4.3
	// requires it to wait until the safekeeper vote round reaches quorum,
	// starting from the quorum-committed LSN rather than the primary's
	// current head. See the QuorumReached callback below.

	segSize := upstream.DefaultWalSegSize
	localID := wire.NodeID{Term: 1, UUID: uuid.New()}
	baseInfo := wire.ServerInfo{
		ProtocolVersion: wire.ProtocolVersion,
		SystemID:        0,
		Timeline:        ident.Timeline,
		WalEnd:          ident.WalEnd,
		WalSegSize:      segSize,
	}

	walEvents := make(chan broadcast.UpstreamEvent, 16)
	feedback := make(chan []byte, 4)

	s := &session{
		ctx: ctx, cancel: cancel, cfg: cfg, log: log,
		registry: registry, feed: feed, checker: checker,
		upConn: upConn, runErr: make(chan error, 1),
		walEvents: walEvents, feedback: feedback,
		ident: ident, segSize: segSize,
	}

	b, err := broadcast.New(broadcast.Config{
		Addrs:         cfg.Safekeepers,
		Quorum:        cfg.Quorum,
		LocalID:       localID,
		BaseInfo:      baseInfo,
		Logger:        log,
		Metrics:       registry,
		StatusFeed:    feed,
		QuorumReached: s.onQuorumReached,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build broadcaster: %w", err)
	}
	registry.SetQuorumSize(cfg.Quorum)
	s.b = b

	return s, nil
}

// onQuorumReached fires once, off the broadcaster's owning loop, the moment
// the safekeeper vote round decides. It computes the quorum-committed LSN
// from the ack snapshot (spec.md §4.3's GetAcknowledgedWALPosition, falling
// back to the primary's WalEnd if the quorum has acked nothing yet),
// aligns it to a WAL segment boundary, then issues START_REPLICATION and
// starts streaming.
func (s *session) onQuorumReached(ackLSNs []uint64) {
	startLSN := broadcast.CommittedLSN(ackLSNs, s.cfg.Quorum)
	if startLSN == wire.InvalidLSN {
		startLSN = s.ident.WalEnd
	}
	startLSN = wire.AlignToSegment(startLSN, s.segSize)

	s.log.Info("quorum reached, starting replication",
		logging.LSN("start_lsn", startLSN), logging.String("timeline", fmt.Sprint(s.ident.Timeline)))

	if err := s.upConn.StartReplication(s.ctx, startLSN, s.ident.Timeline); err != nil {
		s.log.Error("START_REPLICATION failed", logging.Error(err))
		s.cancel()
		return
	}
	go upstream.Stream(s.ctx, s.upConn, s.walEvents, s.feedback)
}

// start launches the broadcaster's owning loop in the background; the
// caller reads s.runErr for the terminal result. Upstream WAL streaming
// itself does not begin until the safekeeper quorum is reached (see
// onQuorumReached).
func (s *session) start() {
	go func() {
		s.runErr <- s.b.Run(s.ctx, s.walEvents, s.feedback)
	}()
}

func (s *session) close() {
	s.cancel()
	s.feed.Shutdown()
	s.upConn.Close(context.Background())
}

func runHeadless(cfg config.Config, log logging.Logger) int {
	s, err := newSession(cfg, log)
	if err != nil {
		log.Error("failed to start session", logging.Error(err))
		return 1
	}
	defer s.close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("received shutdown signal")
		s.cancel()
	}()

	s.start()
	if err := <-s.runErr; err != nil {
		log.Error("broadcaster terminated with error", logging.Error(err))
		return 1
	}

	log.Info("broadcaster stopped cleanly")
	return 0
}

// promptPassword reads a password from the controlling terminal without
// echoing it, matching -w's behavior in the original tool.
func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	pw, err := term.ReadPassword(os.Stdin.Fd())
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

func startMetricsServer(addr string, registry *metrics.Registry, log logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry.PrometheusRegistry(), promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info("serving metrics", logging.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", logging.Error(err))
		}
	}()
}

func startHealthServer(addr string, checker *health.Checker, log logging.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", checker.LivenessHandler())
	mux.HandleFunc("/readyz", checker.ReadinessHandler())
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info("serving health checks", logging.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("health server failed", logging.Error(err))
		}
	}()
}
