package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/peter-kozarec/candlestep/internal/dbg"
	"github.com/peter-kozarec/candlestep/pkg/bus"
)

func main() {
	logger, err := dbg.NewDevLogger("info")
	if err != nil {
		panic(err)
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	if err := run(os.Args[1:], os.Stdout); err != nil {
		logger.Fatal("replay failed", zap.Error(err))
	}
}

func run(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	path := fs.String("log", "", "event log written by the backtest")
	showData := fs.Bool("data", false, "print event payloads")
	root := fs.String("root", "", "print only the cascade rooted at this event id")
	eventType := fs.String("type", "", "print the events of this type")
	where := fs.String("where", "", "print the events whose data holds key=value, value read as JSON when valid")
	count := fs.Bool("count", false, "print the number of events per type")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" && fs.NArg() > 0 {
		*path = fs.Arg(0)
	}
	if *path == "" {
		return fmt.Errorf("no event log given")
	}

	log, err := bus.LoadFile(*path)
	if err != nil {
		return err
	}
	query := bus.NewQuery(log)

	switch {
	case *count:
		return printCounts(w, query.CountByType())
	case *root != "":
		return query.PrintSingleCascade(w, *root, *showData)
	case *eventType != "":
		return printDetails(w, query, query.ByType(*eventType), *showData)
	case *where != "":
		key, value, ok := strings.Cut(*where, "=")
		if !ok || key == "" {
			return fmt.Errorf("invalid -where %q, want key=value", *where)
		}
		events, err := query.ByData(key, parseValue(value))
		if err != nil {
			return err
		}
		return printDetails(w, query, events, *showData)
	default:
		return query.PrintCascade(w, *showData)
	}
}

// parseValue reads value as JSON when it is valid JSON and as a plain string otherwise.
func parseValue(value string) any {
	var decoded any
	if err := json.Unmarshal([]byte(value), &decoded); err != nil {
		return value
	}
	return decoded
}

func printDetails(w io.Writer, query *bus.Query, events []bus.Event, showData bool) error {
	for _, event := range events {
		if err := query.PrintEventDetails(w, event, showData); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d event(s)\n", len(events))
	return err
}

func printCounts(w io.Writer, counts map[string]int) error {
	types := make([]string, 0, len(counts))
	for eventType := range counts {
		types = append(types, eventType)
	}
	sort.Strings(types)

	for _, eventType := range types {
		if _, err := fmt.Fprintf(w, "%-20s %d\n", eventType, counts[eventType]); err != nil {
			return err
		}
	}
	return nil
}
