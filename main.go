package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"bazaar/api"
	"bazaar/cli"
	"bazaar/config"
	"bazaar/crash"
	"bazaar/db"
	"bazaar/dispatch"
	"bazaar/globals"
	"bazaar/maint"
	"bazaar/mq"
	"bazaar/notify"
	"bazaar/ratelim"
	"bazaar/rdx"
	"bazaar/routes"
	"bazaar/store"
)

// securityHeaders applies a set of recommended HTTP security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// XSS, content sniffing, framing
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "frame-ancestors 'none'")
		// HSTS (must be on HTTPS)
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		// Referrer and permissions
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		// Prevent caching
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each request method, path, remote address, and duration.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		duration := time.Since(start)
		log.Printf("%s %s from %s – %v", r.Method, r.RequestURI, r.RemoteAddr, duration)
	})
}

// Index is a simple health check handler.
func Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	fmt.Fprint(w, "200")
}

// setupRouter builds the router with the health check and every API route.
func setupRouter(d routes.Deps) *httprouter.Router {
	router := httprouter.New()
	router.GET("/health", Index)
	routes.RoutesWrapper(router, d)
	return router
}

// backend is where held state and maintenance events live.
type backend struct {
	kv        store.KV
	pub       mq.Publisher
	subscribe func(ctx context.Context, h mq.Handler)
}

func openBackend(ctx context.Context, cfg config.Config) (backend, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		client, err := rdx.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return backend{}, err
		}
		pub := mq.NewRedis(client)
		return backend{
			kv:  rdx.NewKV(client),
			pub: pub,
			subscribe: func(ctx context.Context, h mq.Handler) {
				go pub.Subscribe(ctx, mq.MaintenanceChannel, h)
			},
		}, nil
	case config.BackendMongo:
		if _, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB); err != nil {
			return backend{}, err
		}
		local := mq.NewLocal()
		return backend{
			kv:  db.NewKV(db.KVCollection),
			pub: local,
			subscribe: func(_ context.Context, h mq.Handler) {
				local.Subscribe(mq.MaintenanceChannel, h)
			},
		}, nil
	}
	local := mq.NewLocal()
	return backend{
		kv:  store.NewMemoryKV(),
		pub: local,
		subscribe: func(_ context.Context, h mq.Handler) {
			local.Subscribe(mq.MaintenanceChannel, h)
		},
	}, nil
}

// maintenanceJobs are the periodic passes over held state.
func maintenanceJobs(cfg config.Config, st *store.Store, rateLimiter *ratelim.RateLimiter) []maint.Job {
	return []maint.Job{
		{Name: "diagnose", Every: cfg.DiagnoseEvery, Run: func(context.Context) ([]string, error) {
			return st.DiagnoseAndFix()
		}},
		{Name: "cleanup", Every: cfg.CleanupEvery, Run: func(context.Context) ([]string, error) {
			return st.SafeCleanup()
		}},
		{Name: "heartbeat", Every: cfg.HeartbeatEvery, Run: func(ctx context.Context) ([]string, error) {
			swept := rateLimiter.Sweep()
			if err := st.Save(ctx); err != nil {
				return nil, err
			}
			return []string{fmt.Sprintf("Heartbeat: state saved, %d idle visitor(s) swept", swept)}, nil
		}},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	globals.JwtSecret = []byte(cfg.JWTSecret)

	startCtx, cancelStart := context.WithTimeout(ctx, 15*time.Second)
	defer cancelStart()
	be, err := openBackend(startCtx, cfg)
	if err != nil {
		return fmt.Errorf("open %s backend: %w", cfg.StoreBackend, err)
	}

	codec := store.NewCodec(cfg.ObfuscationKey)
	st := store.New(be.kv, codec)
	repairLog, err := st.Load(startCtx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	log.Printf("[store] loaded: %s", strings.Join(repairLog, " | "))

	// initialize rate limiter, crash governors and notice hub
	rateLimiter := ratelim.NewRateLimiter(cfg.RatePerSec, cfg.RateBurst)
	governors := crash.NewRegistry(be.kv, st, crash.Options{Grace: cfg.CrashGrace, Codec: codec})
	hub := notify.NewHub()
	go hub.Run()

	// maintenance runs when the API is idle and reports to the admins room
	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()
	scheduler := maint.New(be.pub, maint.Options{Idle: cfg.MaintIdle, MaxDefer: cfg.MaintMaxDefer})
	for _, job := range maintenanceJobs(cfg, st, rateLimiter) {
		scheduler.Add(job)
	}
	be.subscribe(runCtx, func(_ string, evt mq.Event) {
		hub.Publish(notify.AdminRoom, "maintenance:"+evt.Kind, evt.Log, evt)
	})
	scheduler.Start(runCtx)

	router := setupRouter(routes.Deps{
		API:         &api.API{Store: st, Governors: governors, Hub: hub},
		Dispatch:    &dispatch.Handlers{Store: st, Hub: hub},
		Hub:         hub,
		Governors:   governors,
		RateLimiter: rateLimiter,
	})

	// apply middleware: activity → CORS → security headers → logging → router
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // lock down in production
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(router)

	handler := scheduler.Activity(loggingMiddleware(securityHeaders(corsHandler)))

	// create HTTP server
	server := &http.Server{
		Addr:              cfg.Port,
		Handler:           handler,
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	// on shutdown: stop maintenance and the hub, persist state, close DB
	server.RegisterOnShutdown(func() {
		log.Println("🛑 Stopping maintenance and notice hub...")
		scheduler.Stop()
		hub.Stop()
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.Save(saveCtx); err != nil {
			log.Printf("❌ Final save failed: %v", err)
		}
		db.Disconnect(saveCtx)
	})

	// start server
	errCh := make(chan error, 1)
	go func() {
		log.Printf("🚀 Server listening on %s (%s backend)", cfg.Port, cfg.StoreBackend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// wait for interrupt, SIGTERM or a listener failure
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	select {
	case <-sigCh:
		log.Println("🛑 Shutdown signal received; shutting down gracefully...")
	case <-ctx.Done():
		log.Println("🛑 Context cancelled; shutting down gracefully...")
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}

	// initiate graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Println("✅ Server stopped cleanly")
	return nil
}

func main() {
	os.Exit(cli.Execute(serve))
}
