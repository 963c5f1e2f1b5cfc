package main

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gbl08ma/keybox"
	"github.com/gbl08ma/sqalx"
	"github.com/jmoiron/sqlx"

	"github.com/traindw/ingestor/ingestor"
	"github.com/traindw/ingestor/irail"
)

var (
	rdb           *sqlx.DB
	rootSqalxNode sqalx.Node
	secrets       *keybox.Keybox
	orchestrator  *ingestor.Orchestrator
	mainLog       = log.New(os.Stdout, "", log.Ldate|log.Ltime)
	ingestLog     = log.New(os.Stdout, "ingest", log.Ldate|log.Ltime)
	webLog        = log.New(os.Stdout, "web", log.Ldate|log.Ltime)

	// GitCommit is provided by govvv at compile-time
	GitCommit = "???"
	// BuildDate is provided by govvv at compile-time
	BuildDate = "???"
)

func main() {
	var err error
	mainLog.Println("Ingestion server starting, opening keybox...")
	secrets, err = keybox.Open(SecretsPath)
	if err != nil {
		mainLog.Fatalln(err)
	}
	mainLog.Println("Keybox opened")

	mainLog.Println("Opening database...")
	databaseURI, present := secrets.Get("databaseURI")
	if !present {
		mainLog.Fatalln("Database connection string not present in keybox")
	}
	rdb, err = sqlx.Open("postgres", databaseURI)
	if err != nil {
		mainLog.Fatalln(err)
	}
	defer rdb.Close()

	err = rdb.Ping()
	if err != nil {
		mainLog.Fatalln(err)
	}
	rdb.SetMaxOpenConns(MaxDBconnectionPoolSize)

	rootSqalxNode, err = sqalx.New(rdb)
	if err != nil {
		mainLog.Fatalln(err)
	}
	mainLog.Println("Database opened")

	location, err := time.LoadLocation(UpstreamTimezone)
	if err != nil {
		mainLog.Fatalln(err)
	}

	baseURL, _ := secrets.Get("irailBaseURL")
	client := irail.NewClient(baseURL, "en", location)

	store := ingestor.NewSQLStore(rootSqalxNode)
	orchestrator = &ingestor.Orchestrator{
		API:               client,
		Store:             store,
		Resolver:          ingestor.NewResolver(store),
		Normalizer:        &ingestor.Normalizer{},
		Executor:          &ingestor.Executor{Store: store, Backoff: ingestor.DefaultBackoff, Log: ingestLog},
		Log:               ingestLog,
		LiveboardStations: listFromKeybox("liveboardStations"),
		Routes:            routesFromKeybox("connectionRoutes"),
		Concurrency:       ingestor.DefaultConcurrency,
		FetchTimeout:      30 * time.Second,
		RunTimeout:        10 * time.Minute,
		FetchBackoff:      ingestor.DefaultBackoff,
		OnReport: func(report *ingestor.RunReport) {
			select {
			case reportTelemetry <- report:
			default:
			}
		},
	}
	if len(orchestrator.LiveboardStations) == 0 {
		mainLog.Println("No liveboard stations configured, departures will be empty")
	}

	go StatsSender()
	go APIserver()

	runIngestion := func() {
		_, err := orchestrator.RunIngestion(context.Background(), nil)
		if err != nil {
			ingestLog.Println(err)
		}
	}

	time.Sleep(2 * time.Second)
	runIngestion()
	ticker := time.NewTicker(IngestInterval)
	defer ticker.Stop()
	for range ticker.C {
		runIngestion()
	}
}

// listFromKeybox reads a comma-separated list from the keybox
func listFromKeybox(key string) []string {
	value, present := secrets.Get(key)
	if !present || value == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// routesFromKeybox reads a comma-separated list of from:to station ID pairs
// from the keybox
func routesFromKeybox(key string) [][2]string {
	var routes [][2]string
	for _, item := range listFromKeybox(key) {
		parts := strings.Split(item, ":")
		if len(parts) != 2 {
			mainLog.Println("Ignoring malformed route", item)
			continue
		}
		routes = append(routes, [2]string{parts[0], parts[1]})
	}
	return routes
}
