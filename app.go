package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kwv/fgsp/posegraph"
)

// shutdownTimeout bounds the graceful HTTP shutdown
const shutdownTimeout = 5 * time.Second

// AppOptions holds the command line options
type AppOptions struct {
	ConfigFile string
	HTTPPort   int
	Debug      bool
	LogFormat  string
}

// App encapsulates the application state and dependencies
type App struct {
	Config     *posegraph.Config
	Logger     *zap.Logger
	MQTTClient *posegraph.MQTTClient
	Publisher  *posegraph.Publisher
	Client     *posegraph.GraphClient
	Monitor    *posegraph.GraphMonitor

	ConfigFile string
	HTTPPort   int
	Debug      bool
	LogFormat  string
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{Logger: zap.NewNop()}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.HTTPPort = opts.HTTPPort
	a.Debug = opts.Debug
	a.LogFormat = opts.LogFormat
}

// initLogger builds the logger selected by the debug and format options
func (a *App) initLogger() error {
	var (
		logger *zap.Logger
		err    error
	)
	switch {
	case a.LogFormat == "json" && a.Debug:
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		logger, err = cfg.Build()
	case a.LogFormat == "json":
		logger, err = zap.NewProduction()
	case a.Debug:
		logger, err = zap.NewDevelopment()
	default:
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		logger, err = cfg.Build()
	}
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	a.Logger = logger
	return nil
}

// loadConfig loads the configuration and applies the command line overrides
func (a *App) loadConfig() error {
	config, err := posegraph.LoadConfig(a.ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w (looked at %s)", err, a.ConfigFile)
	}
	if a.HTTPPort > 0 {
		config.HTTP.Port = a.HTTPPort
	}
	a.Config = config
	return nil
}

func (a *App) setup() error {
	if err := a.initLogger(); err != nil {
		return err
	}
	if err := a.loadConfig(); err != nil {
		return err
	}
	a.Logger.Info("loaded config",
		zap.String("path", a.ConfigFile),
		zap.String("robot", a.Config.RobotName),
		zap.String("mode", string(a.Config.Mode)),
		zap.String("version", Version))
	a.Publisher = posegraph.NewPublisher(nil, a.Logger)
	a.Publisher.SetQoS(a.Config.MQTT.QoS)
	return nil
}

// connect starts the MQTT connection for subs and attaches it to the publisher
func (a *App) connect(ctx context.Context, subs []posegraph.Subscription) error {
	mqttClient, err := posegraph.InitMQTT(ctx, a.Config, subs, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize MQTT: %w", err)
	}
	if mqttClient == nil {
		a.Logger.Warn("MQTT broker not configured, running without ingest and egress")
		return nil
	}
	a.MQTTClient = mqttClient
	a.Publisher.SetClient(mqttClient.GetClient())
	return nil
}

// RunClient runs the graph client until ctx is done
func (a *App) RunClient(ctx context.Context) error {
	if err := a.setup(); err != nil {
		return err
	}
	defer func() { _ = a.Logger.Sync() }()

	client, err := posegraph.NewGraphClient(a.Config, a.Publisher, a.Logger)
	if err != nil {
		return err
	}
	a.Client = client
	if err := client.RestoreState(); err != nil {
		a.Logger.Warn("failed to restore emitter state", zap.Error(err))
	}
	if err := a.connect(ctx, client.Subscriptions()); err != nil {
		return err
	}
	if err := client.Bootstrap(ctx); err != nil {
		a.Logger.Warn("bootstrap trajectory not loaded", zap.Error(err))
	}

	handler := newHTTPServer(httpDeps{
		Status:    func() any { return client.Status() },
		Render:    client.RenderTrajectory,
		Connected: a.mqttConnected,
		Logger:    a.Logger,
	})
	return a.serve(ctx, client.Run, handler)
}

// RunMonitor runs the graph relay until ctx is done
func (a *App) RunMonitor(ctx context.Context) error {
	if err := a.setup(); err != nil {
		return err
	}
	defer func() { _ = a.Logger.Sync() }()

	monitor := posegraph.NewGraphMonitor(a.Config, a.Publisher, a.Logger)
	a.Monitor = monitor
	if err := a.connect(ctx, monitor.Subscriptions()); err != nil {
		return err
	}

	handler := newHTTPServer(httpDeps{
		Status:    func() any { return monitor.Status() },
		Connected: a.mqttConnected,
		Logger:    a.Logger,
	})
	return a.serve(ctx, monitor.Run, handler)
}

func (a *App) mqttConnected() bool {
	return a.MQTTClient != nil && a.MQTTClient.IsConnected()
}

// serve runs the tick loop and the HTTP server until ctx is done, then shuts
// both down and disconnects from the broker
func (a *App) serve(ctx context.Context, run func(context.Context) error, handler http.Handler) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", a.Config.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return run(gctx)
	})
	g.Go(func() error {
		a.Logger.Info("starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	a.Logger.Info("shutting down")
	if a.MQTTClient != nil {
		a.MQTTClient.Disconnect()
	}
	return err
}

// httpDeps are the callbacks the HTTP endpoints read from
type httpDeps struct {
	Status    func() any
	Render    func(w io.Writer, format string) error
	Connected func() bool
	Logger    *zap.Logger
}
