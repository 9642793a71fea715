package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	lib "github.com/bikewatch-nyc/gbfs-analytics"
	"github.com/bikewatch-nyc/gbfs-analytics/config"
	"github.com/bikewatch-nyc/gbfs-analytics/gbfs"
	"github.com/bikewatch-nyc/gbfs-analytics/session"
	"github.com/bikewatch-nyc/gbfs-analytics/sink"
)

func main() {
	mode := flag.String("mode", "snapshot", "snapshot|delta|serve")
	city := flag.String("city", "", "system name from config.systems[] (comma-separated for several)")
	feed := flag.String("feed", "station_status", "feed name, e.g. station_status or free_bike_status")
	interval := flag.Int("interval", 0, "seconds between polls (overrides config)")
	iterations := flag.Int("iterations", 0, "number of polls (overrides config)")
	save := flag.Bool("save", false, "persist per-tick artifacts")
	out := flag.String("out", "", "artifact directory for -save (overrides config)")
	sqlitePath := flag.String("sqlite", "", "persist artifacts to this SQLite file instead of the filesystem")
	list := flag.Bool("list", false, "list configured systems and exit")
	dump := flag.Bool("dump", false, "print the accumulated series as JSON when the run ends")
	flag.Parse()

	lib.InitLogging()
	if err := config.LoadAppConfig(); err != nil {
		panic(err)
	}

	if *list {
		for _, name := range config.Config.SystemNames() {
			url, _ := config.Config.DiscoveryURL(name)
			fmt.Printf("%s\t%s\n", name, url)
		}
		return
	}

	pollInterval := time.Duration(config.Config.Polling.IntervalSeconds) * time.Second
	if *interval > 0 {
		pollInterval = time.Duration(*interval) * time.Second
	}
	pollIterations := config.Config.Polling.Iterations
	if *iterations > 0 {
		pollIterations = *iterations
	}

	client := gbfs.NewClient(
		gbfs.WithTimeout(time.Duration(config.Config.Polling.TimeoutMS)*time.Millisecond),
		gbfs.WithRateLimit(config.Config.Polling.RateLimitPerSecond, 1),
	)
	snk, closeSink, err := buildSink(*save || *sqlitePath != "", *out, *sqlitePath)
	if err != nil {
		panic(err)
	}
	if closeSink != nil {
		defer closeSink()
	}
	mgr := session.NewManager(&config.Config, client, snk)

	switch *mode {
	case "snapshot", "delta":
		if *city == "" {
			panic("a -city is required; see -list for the available systems")
		}
		var jobs []session.Job
		for _, c := range strings.Split(*city, ",") {
			c = strings.TrimSpace(c)
			if c == "" {
				continue
			}
			jobs = append(jobs, session.Job{
				City:       c,
				Feed:       *feed,
				Interval:   pollInterval,
				Iterations: pollIterations,
				SaveMode:   *save || *sqlitePath != "",
				Delta:      *mode == "delta",
			})
		}
		handles := mgr.RunAll(context.Background(), jobs)
		failed := 0
		for _, h := range handles {
			if err := h.Err(); err != nil {
				failed++
				log.Printf("job %s/%s failed: %v", h.Job.City, h.Job.Feed, err)
				continue
			}
			if *dump {
				if sess := h.Session(); sess != nil {
					if store := sess.Store(h.Job.Feed); store != nil {
						_ = store.SerializeTo(log.Writer())
					}
				}
			}
		}
		if failed > 0 {
			panic(fmt.Sprintf("%d of %d jobs failed", failed, len(handles)))
		}
	case "serve":
		reg := lib.NewRegistry()
		cities := config.Config.SystemNames()
		if *city != "" {
			cities = strings.Split(*city, ",")
		}
		ctx := context.Background()
		for _, c := range cities {
			c = strings.TrimSpace(c)
			if c == "" {
				continue
			}
			h := mgr.Start(ctx, session.Job{
				City:       c,
				Feed:       *feed,
				Interval:   pollInterval,
				Iterations: pollIterations,
				SaveMode:   *save || *sqlitePath != "",
			})
			reg.Put(h)
		}
		lib.StartServer(reg)
		lib.HandleGracefulShutdown(reg)
	default:
		panic("unknown mode")
	}
}

// buildSink picks the artifact store: SQLite when -sqlite is set, else the
// save directory. Returns a nil sink when persistence is off entirely.
func buildSink(wantSink bool, out, sqlitePath string) (sink.Sink, func(), error) {
	if !wantSink {
		return nil, nil, nil
	}
	if sqlitePath == "" {
		sqlitePath = config.Config.Polling.SQLitePath
	}
	if sqlitePath != "" {
		s, err := sink.NewSQLiteSink(sqlitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}
	dir := out
	if dir == "" {
		dir = config.Config.Polling.SaveDir
	}
	if dir == "" {
		dir = "snapshots"
	}
	s, err := sink.NewFileSink(dir)
	if err != nil {
		return nil, nil, err
	}
	return s, nil, nil
}
