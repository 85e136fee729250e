package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	catalogdata "mycase-designer/catalog"
	"mycase-designer/config"
	"mycase-designer/core"
	"mycase-designer/handlers/api/catalog"
	"mycase-designer/handlers/api/gallery"
	"mycase-designer/handlers/api/sessions"
	"mycase-designer/handlers/api/snapshots"
	"mycase-designer/handlers/auth"
	"mycase-designer/handlers/websocket"
	authmw "mycase-designer/middleware"
	"mycase-designer/order"
	"mycase-designer/overlay"
	"mycase-designer/render"
	"mycase-designer/session"
	"mycase-designer/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func setupRouter(cfg *config.Config, reg *session.Registry, store core.DesignStore, designs *catalogdata.Gallery, sender order.Sender) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/catalog", func(r chi.Router) {
			r.Get("/phones", catalog.HandlePhones())
			r.Get("/thermos", catalog.HandleThermos())
			r.Get("/fonts", catalog.HandleFonts())
			r.Get("/designs", gallery.HandleList(designs))
			r.Get("/designs/{slug}", gallery.HandleDetail(designs))
		})
		r.Post("/ready-orders", gallery.HandleReadyOrder(designs, sender, cfg.OrderTimeout))

		r.Post("/sessions", sessions.HandleCreate(reg))

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Use(authmw.AuthSession)

			r.Get("/", sessions.HandleGet(reg))
			r.Delete("/", sessions.HandleDelete(reg))
			r.Put("/product", sessions.HandleProduct(reg))
			r.Put("/viewport", sessions.HandleViewport(reg))
			r.Put("/theme", sessions.HandleTheme(reg))

			r.Post("/uploads", sessions.HandleUpload(reg))
			r.Route("/uploads/{fileId}", func(r chi.Router) {
				r.Delete("/", sessions.HandleRemoveUpload(reg))
				r.Get("/thumbnail", sessions.HandleThumbnail(reg))
				r.Post("/place", sessions.HandlePlace(reg))
			})

			r.Post("/texts", sessions.HandleAddText(reg))
			r.Put("/thermos-text", sessions.HandleThermosText(reg))
			r.Route("/objects/{objectId}", func(r chi.Router) {
				r.Patch("/", sessions.HandleUpdateObject(reg))
				r.Post("/controls/{control}", sessions.HandleControl(reg))
			})
			r.Put("/selection", sessions.HandleSelection(reg))
			r.Put("/style", sessions.HandleStyle(reg))
			r.Post("/keys", sessions.HandleKey(reg))
			r.Post("/editing", sessions.HandleEditing(reg))
			r.Post("/gestures", sessions.HandleGesture(reg))
			r.Post("/clear", sessions.HandleClear(reg))
			r.Get("/export.png", sessions.HandleExport(reg))
			r.Post("/order", sessions.HandleOrder(reg))

			r.Post("/designs", snapshots.HandleCreateDesign(reg, store))
			r.Get("/designs", snapshots.HandleListDesigns(store))
		})

		r.Route("/designs/{designId}", func(r chi.Router) {
			r.Use(authmw.AuthSession)
			r.Get("/", snapshots.HandleGetDesign(store))
			r.Get("/image.png", snapshots.HandleDesignImage(store))
			r.Delete("/", snapshots.HandleDeleteDesign(store))
		})
	})

	// Product art is served from here when it lives on local disk.
	if !strings.HasPrefix(cfg.StaticBase, "http://") && !strings.HasPrefix(cfg.StaticBase, "https://") {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticBase))))
	}

	return r
}

func waitForShutdown(srv *http.Server, hub *websocket.Hub, reg *session.Registry, cancel context.CancelFunc) {
	signalC := make(chan os.Signal, 1)
	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	s := <-signalC
	logrus.WithField("signal", s.String()).Info("Shutting down")

	cancel()
	ctx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("HTTP server did not shut down cleanly")
	}
	hub.Close()
	reg.CloseAll()
}

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddress := flag.String("listen", ":3002", "The address to listen on.")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	auth.InitAuth(cfg.SessionSecret)

	fonts, err := render.NewFonts()
	if err != nil {
		logrus.Fatalf("Failed to load built-in fonts: %v", err)
	}
	if cfg.FontDir != "" {
		n, err := fonts.LoadDir(cfg.FontDir)
		if err != nil {
			logrus.WithError(err).Warn("Failed to load font directory")
		} else {
			logrus.WithFields(logrus.Fields{"dir": cfg.FontDir, "fonts": n}).Info("Fonts loaded successfully")
		}
	}
	if cfg.OrderEndpoint == "" {
		logrus.Warn("ORDER_ENDPOINT is not set, orders will fail")
	}

	designs, err := catalogdata.LoadGallery(cfg.DesignsFile)
	if err != nil {
		logrus.Fatalf("Failed to load ready designs: %v", err)
	}
	logrus.WithField("designs", designs.Len()).Info("Ready designs loaded successfully")

	sender := order.NewClient(cfg.OrderEndpoint, cfg.OrderTimeout)
	reg := session.NewRegistry(session.Deps{
		Loader:       overlay.NewLoader(cfg.StaticBase, cfg.LoadTimeout),
		Exporter:     render.NewExporter(fonts),
		Sender:       sender,
		StaticBase:   cfg.StaticBase,
		BaseWidth:    cfg.BaseWidth,
		BaseHeight:   cfg.BaseHeight,
		LoadTimeout:  cfg.LoadTimeout,
		OrderTimeout: cfg.OrderTimeout,
	}, cfg.SessionTTL)
	hub := websocket.NewHub(reg, cfg.CORSOrigins)
	reg.SetNotifier(hub)

	ctx, cancel := context.WithCancel(context.Background())
	go reg.Run(ctx, time.Minute)

	store := stores.GetStore(cfg.Storage)

	r := setupRouter(cfg, reg, store, designs, sender)
	r.Mount("/socket.io/", hub.Handler())

	srv := &http.Server{Addr: *listenAddress, Handler: r}
	logrus.WithField("addr", *listenAddress).Info("starting server")
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(srv, hub, reg, cancel)
}
