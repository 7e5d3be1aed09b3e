// gradecli grades a list of learners against one course and prints one
// JSON line per learner. Courses and scores come either from the service
// database or from local snapshot files, so runs work fully offline.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/peterbourgon/ff/v3"
	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-grades/internal/course"
	"github.com/mind-engage/mindengage-grades/internal/db"
	"github.com/mind-engage/mindengage-grades/internal/grades"
	"github.com/mind-engage/mindengage-grades/internal/scores"
	"github.com/mind-engage/mindengage-grades/pkg/logging"
)

func main() {
	fs := flag.NewFlagSet("gradecli", flag.ExitOnError)
	var (
		_            = fs.String("config", "", "config file (optional), json format.")
		courseID     = fs.String("course", "", "course id to grade")
		learnersCSV  = fs.String("learners", "", "comma-separated learner ids")
		learnersFile = fs.String("learners-file", "", "file with one learner id per line")
		workers      = fs.Int("workers", 1, "number of learners graded concurrently")
		limit        = fs.Int("limit", 0, "stop after this many results (0 = all)")
		dbDriver     = fs.String("db-driver", "sqlite", "database driver (sqlite|postgres)")
		dbDSN        = fs.String("dsn", "", "database DSN; driver default when empty")
		snapshotPath = fs.String("snapshot", "", "course snapshot JSON file (replaces the database course store)")
		scoresPath   = fs.String("scores", "", "scores JSON file (replaces the database score store)")
		logLevel     = fs.String("log-level", "warn", "log level for diagnostics on stderr")
	)
	if err := ff.Parse(fs, os.Args[1:],
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.JSONParser),
		ff.WithEnvVarPrefix("GRADES"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "gradecli: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{Level: *logLevel})
	if err != nil {
		fmt.Fprintf(os.Stderr, "gradecli: logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *courseID == "" {
		logger.Fatal("--course is required")
	}
	learners, err := collectLearners(*learnersCSV, *learnersFile)
	if err != nil {
		logger.Fatal("read learners", zap.Error(err))
	}

	ctx := context.Background()

	var trees course.TreeProvider
	var provider scores.Provider
	if *snapshotPath != "" {
		trees, err = snapshotStore(ctx, *snapshotPath)
		if err != nil {
			logger.Fatal("load snapshot", zap.Error(err))
		}
		provider, err = scoresFile(*scoresPath)
		if err != nil {
			logger.Fatal("load scores", zap.Error(err))
		}
	} else {
		openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		dbh, err := db.Open(openCtx, db.Driver(*dbDriver), *dbDSN)
		cancel()
		if err != nil {
			logger.Fatal("db open failed", zap.Error(err))
		}
		defer dbh.Close()
		trees = course.NewSQLStore(dbh, *dbDriver)
		// one bulk query per learner instead of one per problem
		provider = scores.NewPreloaded(*courseID, scores.NewSQLStore(dbh, *dbDriver))
	}

	factory := grades.NewFactory(trees, provider,
		grades.WithLogger(logger),
		grades.WithWorkers(*workers),
	)

	run, err := factory.IterGrades(ctx, *courseID, learners)
	if err != nil {
		logger.Fatal("start run", zap.Error(err))
	}
	defer run.Close()

	type line struct {
		Learner string   `json:"learner_id"`
		Percent *float64 `json:"percent,omitempty"`
		Letter  string   `json:"letter,omitempty"`
		Error   string   `json:"error,omitempty"`
	}
	enc := json.NewEncoder(os.Stdout)
	graded, failed := 0, 0
	for {
		if *limit > 0 && graded+failed >= *limit {
			break
		}
		res, ok := run.Next()
		if !ok {
			break
		}
		l := line{Learner: res.Learner, Error: res.Err}
		if res.Grade != nil {
			p := res.Grade.Percent()
			l.Percent = &p
			l.Letter = res.Grade.Letter()
			graded++
		} else {
			failed++
		}
		if err := enc.Encode(l); err != nil {
			logger.Fatal("write output", zap.Error(err))
		}
	}

	logger.Info("run finished",
		zap.String("course_id", *courseID),
		zap.Int("graded", graded),
		zap.Int("failed", failed))
	if failed > 0 {
		os.Exit(1)
	}
}

func collectLearners(csv, file string) ([]string, error) {
	var out []string
	for _, id := range strings.Split(csv, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		for _, ln := range strings.Split(string(data), "\n") {
			if ln = strings.TrimSpace(ln); ln != "" {
				out = append(out, ln)
			}
		}
	}
	return out, nil
}

// snapshotStore loads one course snapshot into an in-memory store.
func snapshotStore(ctx context.Context, path string) (course.TreeProvider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	snap, err := course.DecodeSnapshot(f)
	if err != nil {
		return nil, err
	}
	store := course.NewInMemoryStore()
	if err := store.Put(ctx, snap); err != nil {
		return nil, err
	}
	return store, nil
}

// scoresFile reads {"learner id": {"block id": row}} into a memory store.
// A missing path yields an empty store: every learner grades as
// unattempted.
func scoresFile(path string) (scores.Provider, error) {
	store := scores.NewMemoryStore()
	if path == "" {
		return store, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rows map[string]map[string]scores.LeafScore
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	for learner, blocks := range rows {
		for block, sc := range blocks {
			store.Put(learner, course.BlockID(block), sc)
		}
	}
	return store, nil
}
