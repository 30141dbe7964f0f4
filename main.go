// swiftwatch consumes the output of a Swift test run, either the
// swift-testing JSON event stream delivered over a platform pipe or
// legacy XCTest text, and renders normalized test lifecycle state live.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/swiftwatch/swiftwatch/events"
	"github.com/swiftwatch/swiftwatch/output"
	"github.com/swiftwatch/swiftwatch/parse"
	"github.com/swiftwatch/swiftwatch/pipe"
	"github.com/swiftwatch/swiftwatch/render"
	"github.com/swiftwatch/swiftwatch/results"
	"github.com/swiftwatch/swiftwatch/sink"
	"github.com/swiftwatch/swiftwatch/tui"
)

func main() {
	pipePath := flag.String("pipe", "", "Watch a pipe path for a swift-testing event stream")
	infile := flag.String("f", "", "Read from file instead of stdin")
	legacy := flag.Bool("legacy", false, "Parse legacy XCTest text output instead of the event stream")
	darwin := flag.Bool("darwin", runtime.GOOS == "darwin", "Use Darwin test-case line framing for legacy output")
	notty := flag.Bool("notty", false, "Don't use TUI, output to stdout")
	replay := flag.Bool("replay", false, "Replay events with timing from the original run (requires -f)")
	rate := flag.Float64("rate", 1.0, "Replay rate multiplier (0=instant, 1=original speed, 0.5=2x speed)")
	rawPath := flag.String("raw", "", "Save all input to the specified file")
	eventsPath := flag.String("events", "", "Save decoded event-stream records to the specified file")
	flag.Parse()

	if *replay && *infile == "" {
		fmt.Fprintf(os.Stderr, "Error: -replay requires -f <filename>\n")
		os.Exit(1)
	}
	if *rate < 0 {
		fmt.Fprintf(os.Stderr, "Error: -rate must be >= 0\n")
		os.Exit(1)
	}
	if *pipePath != "" && (*infile != "" || *legacy) {
		fmt.Fprintf(os.Stderr, "Error: -pipe cannot be combined with -f or -legacy\n")
		os.Exit(1)
	}
	if *eventsPath != "" && *legacy {
		fmt.Fprintf(os.Stderr, "Error: -events requires the JSON event stream\n")
		os.Exit(1)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false})

	var rawFile, eventsFile io.Writer
	if *rawPath != "" {
		f, err := os.Create(*rawPath)
		if err != nil {
			logger.Fatal("creating raw output file", "err", err)
		}
		defer f.Close()
		rawFile = f
	}
	if *eventsPath != "" {
		f, err := os.Create(*eventsPath)
		if err != nil {
			logger.Fatal("creating events output file", "err", err)
		}
		defer f.Close()
		eventsFile = f
	}

	var inputSource io.Reader = os.Stdin
	if *infile != "" {
		f, err := os.Open(*infile)
		if err != nil {
			logger.Fatal("opening input file", "err", err)
		}
		defer f.Close()

		if *replay {
			replayReader, err := pipe.NewReplayReader(f, *rate)
			if err != nil {
				logger.Fatal("creating replay reader", "err", err)
			}
			inputSource = replayReader
		} else {
			inputSource = f
		}
	}

	collector := results.NewCollector(results.WithAutoRegister())
	collectorEvents := collector.Subscribe()
	theme := render.NewTheme(runtime.GOOS == "windows")

	// The parser drives the collector from its own goroutine; the UI
	// consumes the collector's event channel.
	go func() {
		defer collector.Finish()
		if *legacy {
			runLegacy(inputSource, collector, *darwin, rawFile)
			return
		}
		if err := runModern(context.Background(), *pipePath, inputSource, collector, rawFile, eventsFile); err != nil {
			logger.Error("parsing event stream", "err", err)
		}
	}()

	var exitCode int
	skipTUI := *notty || (*infile != "" && !*replay)

	if skipTUI {
		simple := output.NewSimpleOutput(os.Stdout, collector, theme)
		if err := simple.ProcessEvents(collectorEvents); err != nil {
			logger.Fatal("processing events", "err", err)
		}
		if simple.HasFailures() {
			exitCode = 1
		}
	} else {
		m := tui.NewModel(collector, theme)
		p := tea.NewProgram(m)

		go func() {
			for evt := range collectorEvents {
				if evt.Type == results.EventOutput && evt.Index == sink.NotFound {
					p.Println(evt.Message)
					continue
				}
				p.Send(tui.ResultsEventMsg(evt))
			}
			p.Send(tui.EOFMsg{})
		}()

		finalModel, err := p.Run()
		if err != nil {
			logger.Fatal("running program", "err", err)
		}

		if model, ok := finalModel.(*tui.Model); ok {
			collector.Finish()
			model.DisplaySummary()
		}
		if collector.Counts().Failed > 0 {
			exitCode = 1
		}
	}

	os.Exit(exitCode)
}

// runModern parses a swift-testing event stream from the pipe path, or
// from source when no pipe is given. raw and eventLog, when non-nil,
// receive pass-through copies of the input and of decoded record lines.
func runModern(ctx context.Context, pipePath string, source io.Reader, collector *results.Collector, raw, eventLog io.Writer) error {
	opts := []parse.ModernOption{
		parse.WithRunStarted(collector.RunStarted),
		parse.WithParameterizedCase(collector.AddCase),
		parse.WithAttachment(collector.AddAttachment),
		parse.WithTestDeclared(func(t events.Test) {
			if t.Kind != events.TestKindFunction {
				return
			}
			file := ""
			if t.SourceLocation != nil {
				file = t.SourceLocation.FilePath
			}
			collector.Add(parse.StripSourceSuffix(t.ID), t.Name, file)
		}),
	}
	if pipePath == "" {
		opts = append(opts, parse.WithSource(source))
	}
	if raw != nil {
		opts = append(opts, parse.WithRawLog(raw))
	}
	if eventLog != nil {
		opts = append(opts, parse.WithEventLog(eventLog))
	}
	parser := parse.NewModernParser(opts...)
	return parser.Watch(ctx, pipePath, collector)
}

// runLegacy parses XCTest text output chunk by chunk, preserving the
// parser's excess/failure state across chunk boundaries. raw, when
// non-nil, receives a pass-through copy of the input.
func runLegacy(source io.Reader, collector *results.Collector, darwin bool, raw io.Writer) {
	if raw != nil {
		source = io.TeeReader(source, raw)
	}
	parser := parse.NewLegacyParser(darwin)
	buf := make([]byte, 4096)
	for {
		n, err := source.Read(buf)
		if n > 0 {
			parser.ParseChunk(string(buf[:n]), collector)
		}
		if err != nil {
			break
		}
	}
	parser.Flush(collector)
}
