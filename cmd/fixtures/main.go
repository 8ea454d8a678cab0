// cmd/fixtures runs an OHLCV JSON file through the indicator engine and
// writes one <name>_values.json file per indicator.
//
// Usage:
//
//	go run ./cmd/fixtures -in=test/ohlcv.json -out=test/data
package main

import (
	"flag"
	"log/slog"
	"os"

	"indstream/internal/fixture"
	"indstream/internal/indicator"
	"indstream/internal/logger"
)

func main() {
	in := flag.String("in", "test/ohlcv.json", "OHLCV JSON input: [{o,h,l,c,v,t?}, ...]")
	out := flag.String("out", "test/data", "Output directory for <name>_values.json files")
	specList := flag.String("indicators", fixture.DefaultSpecs, "Indicator specs: name[:p1[:p2...]][@alias],...")
	symbol := flag.String("symbol", "", "Stream name for the bars")
	level := flag.String("log-level", "info", "debug|info|warn|error")
	flag.Parse()

	log := logger.Init("fixtures", logger.ParseLevel(*level))

	specs, err := indicator.ParseSpecs(*specList)
	if err != nil {
		log.Error("invalid indicator list", "error", err)
		os.Exit(1)
	}
	engine, err := indicator.NewEngine(nil, specs)
	if err != nil {
		log.Error("engine init failed", "error", err)
		os.Exit(1)
	}

	bars, err := fixture.LoadBars(*in, *symbol)
	if err != nil {
		log.Error("load bars failed", "path", *in, "error", err)
		os.Exit(1)
	}

	w := fixture.NewWriter(*out)
	rejected := 0
	for _, b := range bars {
		frame := engine.Process(b)
		for name, err := range frame.Errors() {
			rejected++
			log.Debug("indicator rejected bar", "indicator", name, "seq", frame.Seq, "error", err)
		}
		w.Add(frame)
	}

	files, err := w.Flush()
	if err != nil {
		log.Error("write fixtures failed", "dir", *out, "error", err)
		os.Exit(1)
	}
	for _, st := range w.Summary() {
		log.Info("indicator summary",
			slog.String("indicator", st.Name),
			slog.Int("total", st.Total),
			slog.Int("ready", st.Ready),
			slog.Float64("min", st.Min),
			slog.Float64("max", st.Max),
			slog.Float64("mean", st.Mean),
		)
	}
	log.Info("fixtures written", "bars", len(bars), "files", len(files), "rejected", rejected, "dir", *out)
}
