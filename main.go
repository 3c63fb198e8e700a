package main

import (
	"context"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/CodedInternet/carnode/comms"
	"github.com/CodedInternet/carnode/onboard"
	"github.com/CodedInternet/carnode/onboard/broadcast"
	"github.com/CodedInternet/carnode/onboard/hardware"
	"github.com/CodedInternet/carnode/onboard/nvm"
	"github.com/asdine/storm/v3"
	"github.com/caarlos0/env/v6"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	SHUTDOWN_GRACE = 200 * time.Millisecond
)

type EnvConfig struct {
	JWT_ISSUER     string `env:"CARNODE_ID" envDefault:"DEV"`
	JWT_SECRET     string `env:"CARNODE_JWT_SECRET" envDefault:"xWumOlRfhu+LBi2F2e1yF4FiaopQ5mr8klL4fpILnlI="`
	DEBUG          bool   `env:"DEBUG" envDefault:"0"`
	HTTP_ADDR      string `env:"CARNODE_HTTP_ADDR" envDefault:"0.0.0.0:80"`
	TELEMETRY_ADDR string `env:"CARNODE_TELEMETRY_ADDR" envDefault:":23"`
	MCAST_GROUP    string `env:"CARNODE_MCAST_GROUP" envDefault:"239.255.0.1:4211"`
	DB_FILE        string `env:"CARNODE_DB" envDefault:"./tmp/carnode.db"`
	CALIBRATION    string `env:"CARNODE_CALIBRATION" envDefault:"./car.yaml"`
	TTY            string `env:"CARNODE_TTY" envDefault:"/dev/ttyS0"`
	IFACE          string `env:"CARNODE_IFACE" envDefault:"wlan0"`
	LOG_FILE       string `env:"CARNODE_LOG_FILE"`
	HTMLDIR        string `env:"HTMLDIR" envDefault:"./frontend/dist/"`

	DB        *storm.DB
	Car       *onboard.Car
	Conductor *comms.Conductor
	Admin     *Authenticator
	Logger    *log.Logger
	Simulated bool
}

var (
	ENV *EnvConfig
)

func init() {
	ENV = new(EnvConfig)
	if err := env.Parse(ENV); err != nil {
		log.Fatalf("Unable to parse environment: %v", err)
	}
	ENV.Logger = log.New(os.Stderr, "", log.LstdFlags)
}

func main() {
	simulated := flag.Bool("sim", false, "Run the car against the simulated board")
	interactive := flag.Bool("shell", false, "Start the interactive development shell")
	port := flag.String("port", "", "Override the ip:port to listen on")
	flag.Parse()

	ENV.Simulated = *simulated
	if *port != "" {
		ENV.HTTP_ADDR = *port
	}

	//---
	// Logging: stderr, optional rotating file and the telemetry session
	//---
	writers := []io.Writer{os.Stderr}
	if ENV.LOG_FILE != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   ENV.LOG_FILE,
			MaxSize:    5, // MB
			MaxBackups: 3,
		})
	}
	telemetry, err := onboard.ListenTelemetry(ENV.TELEMETRY_ADDR)
	if err != nil {
		log.Printf("Telemetry disabled: %v", err)
	} else {
		defer telemetry.Close()
		writers = append(writers, telemetry)
	}
	logger := log.New(io.MultiWriter(writers...), "", log.LstdFlags)
	ENV.Logger = logger
	middleware.DefaultLogger = middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: logger, NoColor: true})

	//---
	// Storage and calibration
	//---
	if dir := filepath.Dir(ENV.DB_FILE); dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			os.MkdirAll(dir, 0755)
		}
	}
	db, err := openDb(ENV.DB_FILE)
	if err != nil {
		logger.Fatalf("Unable to open database: %v", err)
	}
	defer db.Close()
	ENV.DB = db

	storage, err := nvm.NewStormStorage(db, nvm.DEFAULT_SIZE)
	if err != nil {
		logger.Fatalf("Unable to load config storage: %v", err)
	}

	calib, err := onboard.LoadCalibration(ENV.CALIBRATION)
	if err != nil {
		logger.Fatalf("Unable to load calibration %s: %v", ENV.CALIBRATION, err)
	}

	//---
	// Hardware
	//---
	var board hardware.Board
	if ENV.Simulated {
		logger.Println("Creating simulator")
		board = hardware.NewSimulatedBoard(time.Now().UnixNano()).Board()
	} else {
		mcu, err := hardware.OpenMCU(ENV.TTY)
		if err != nil {
			logger.Fatalf("Unable to open board on %s: %v", ENV.TTY, err)
		}
		defer mcu.Close()
		version, err := mcu.CheckVersion()
		if err != nil {
			logger.Fatalf("Unable to use board firmware: %v", err)
		}
		logger.Printf("Board firmware %s", version)
		board = mcu.Board(hardware.InterfaceIdentity{Name: ENV.IFACE})
	}

	var publisher onboard.StatusPublisher
	if pub, err := broadcast.Dial(ENV.MCAST_GROUP, calib.Broadcast); err != nil {
		logger.Printf("Status broadcast disabled: %v", err)
	} else {
		defer pub.Close()
		publisher = pub
	}

	car := onboard.NewCar(onboard.CarOptions{
		Board:       board,
		Calibration: calib,
		Storage:     storage,
		Telemetry:   telemetry,
		Publisher:   publisher,
		Logger:      logger,
	})
	ENV.Car = car

	ENV.Admin = NewAuthenticator(bcrypt.DefaultCost)
	if err := ENV.Admin.SetAdminPass(car.ConfigStore().AdminPass()); err != nil {
		logger.Fatalf("Unable to hash admin credential: %v", err)
	}
	ENV.Conductor = comms.NewConductor(car)
	ENV.Conductor.OnAdminPass = ENV.Admin.SetAdminPass

	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		car.Run(loopCtx)
		close(loopDone)
	}()

	if *interactive {
		go newShell().Run()
	}

	srv := &http.Server{Addr: ENV.HTTP_ADDR, Handler: newRouter()}
	go func() {
		logger.Println("Listening on", ENV.HTTP_ADDR)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("HTTP server stopped: %v", err)
		}
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	// let the loop put the outputs in neutral before it stops
	logger.Println("Stopping")
	car.Submit(onboard.Shutdown())
	time.Sleep(SHUTDOWN_GRACE)
	stopLoop()
	<-loopDone

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}

func newRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.RedirectSlashes)
	r.Use(middleware.Recoverer) // make sure this is last

	authenticated := func(r chi.Router) {
		if ENV.DEBUG {
			ENV.Logger.Println("Running in debug mode. Authentication disabled.")
			return
		}
		r.Use(ValidateJWT)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", Login)

		r.Group(func(r chi.Router) {
			authenticated(r)

			r.Get("/refresh_token", JWTRefresh)
			r.Get("/status", StatusView)
			r.Post("/command", CommandView)
			r.Post("/pilot", PilotView)
			r.Post("/drive", DriveView)
			r.Post("/headlights", HeadlightsView)
			r.Post("/color", ColorView)
			r.Post("/trim", TrimView)
			r.Post("/throttle", ThrottleView)
			r.Post("/name", NameView)
			r.Post("/adminpass", AdminPassView)
			r.Post("/save", SaveView)
			r.Post("/shutdown", ShutdownView)
		})
	})

	r.Route("/ws", func(r chi.Router) {
		authenticated(r)

		r.Get("/command", CommandHandler)
		r.Get("/status", StatusHandler)
	})

	FileServer(r, "/", http.Dir(ENV.HTMLDIR))
	return r
}

func openDb(dbFile string) (db *storm.DB, err error) {
	db, err = storm.Open(dbFile)
	if err != nil {
		return
	}

	// call inits for each type
	if err := db.Init(&User{}); err != nil {
		db.Close()
		return nil, err
	}

	return
}

// FileServer conveniently sets up a http.FileServer handler to serve
// static files from a http.FileSystem.
func FileServer(r chi.Router, path string, root http.FileSystem) {
	if strings.ContainsAny(path, "{}*") {
		panic("FileServer does not permit URL parameters.")
	}

	fs := http.StripPrefix(path, http.FileServer(root))

	if path != "/" && path[len(path)-1] != '/' {
		r.Get(path, http.RedirectHandler(path+"/", 301).ServeHTTP)
		path += "/"
	}
	path += "*"

	r.Get(path, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.ServeHTTP(w, r)
	}))
}
