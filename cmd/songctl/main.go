// Command songctl inspects, queries, converts and archives song documents.
//
//	songctl [-v] [-metrics-addr addr] <command> [flags] [args]
//
// Documents are .json, .yaml, .yml or .mid files. Archive commands use the
// backend selected by SONGSTORE_ARCHIVE_DRIVER.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"songstore/internal/codec"
	"songstore/internal/core"
	"songstore/internal/midifile"
	"songstore/pkg/domain"
)

var (
	exitFunc    = os.Exit
	openArchive = core.OpenArchive
	// waitForMetrics blocks after the command while metrics are served.
	waitForMetrics = func(ctx context.Context) {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()
		<-ctx.Done()
	}
)

const usage = `usage: songctl [-v] [-metrics-addr addr] <command> [flags] [args]

commands:
  inspect <file>                                   summarize a song document
  query [-start n] [-end n] [-within] [-tracks ids] <file>
                                                   print events in [start, end)
  convert <in> <out>                               convert between .json, .yaml and .mid
  save -name <name> <file>                         archive a song document
  load -name <name> <out>                          write an archived song to a file
  list                                             list archived songs
  delete -name <name>                              remove an archived song
`

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

type app struct {
	stdout io.Writer
	logger *slog.Logger
	svc    *core.Service
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("songctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { _, _ = io.WriteString(stderr, usage) }
	verbose := fs.Bool("v", false, "enable debug logging")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address until interrupted")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	ctx := context.Background()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics, err := core.NewPrometheusMetricsRecorder(reg)
	if err != nil {
		logger.Error("register metrics", "error", err)
		return 1
	}
	var shutdown func()
	if *metricsAddr != "" {
		shutdown, err = serveMetrics(*metricsAddr, reg, logger)
		if err != nil {
			logger.Error("serve metrics", "error", err)
			return 1
		}
		defer shutdown()
	}

	archive, err := openArchive(ctx)
	if err != nil {
		logger.Error("open archive", "error", err)
		return 1
	}
	if c, ok := archive.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	a := &app{
		stdout: stdout,
		logger: logger,
		svc:    core.NewService(core.WithLogger(logger), core.WithMetricsRecorder(metrics), core.WithArchive(archive)),
	}
	if err := a.dispatch(ctx, fs.Arg(0), fs.Args()[1:], stderr); err != nil {
		if errors.Is(err, errUsage) {
			return 2
		}
		logger.Error("command failed", "command", fs.Arg(0), "error", err)
		return 1
	}
	if shutdown != nil {
		logger.Info("serving metrics; interrupt to exit", "addr", *metricsAddr)
		waitForMetrics(ctx)
	}
	return 0
}

var errUsage = errors.New("usage")

func (a *app) dispatch(ctx context.Context, cmd string, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	switch cmd {
	case "inspect":
		return a.withArgs(fs, args, 1, func(rest []string) error { return a.inspect(ctx, rest[0]) })
	case "query":
		start := fs.Uint("start", 0, "first tick (inclusive)")
		end := fs.Uint("end", uint(domain.MaxTicks), "last tick (exclusive)")
		within := fs.Bool("within", false, "include events still sounding at start")
		tracks := fs.String("tracks", "", "comma-separated track ids")
		return a.withArgs(fs, args, 1, func(rest []string) error {
			if *start > uint(domain.MaxTicks) || *end > uint(domain.MaxTicks) {
				return fmt.Errorf("tick bounds exceed %d", uint32(domain.MaxTicks))
			}
			return a.query(ctx, rest[0], uint32(*start), uint32(*end), *within, splitList(*tracks))
		})
	case "convert":
		return a.withArgs(fs, args, 2, func(rest []string) error { return a.convert(rest[0], rest[1]) })
	case "save":
		name := fs.String("name", "", "archive name")
		return a.withArgs(fs, args, 1, func(rest []string) error { return a.save(ctx, *name, rest[0]) })
	case "load":
		name := fs.String("name", "", "archive name")
		return a.withArgs(fs, args, 1, func(rest []string) error { return a.load(ctx, *name, rest[0]) })
	case "list":
		return a.withArgs(fs, args, 0, func([]string) error { return a.list(ctx) })
	case "delete":
		name := fs.String("name", "", "archive name")
		return a.withArgs(fs, args, 0, func([]string) error { return a.remove(ctx, *name) })
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n%s", cmd, usage)
		return errUsage
	}
}

func (a *app) withArgs(fs *flag.FlagSet, args []string, n int, fn func([]string) error) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() != n {
		_, _ = fmt.Fprintf(fs.Output(), "%s: expected %d argument(s), got %d\n", fs.Name(), n, fs.NArg())
		return errUsage
	}
	return fn(fs.Args())
}

// activate loads the document at path as the service's active song.
func (a *app) activate(ctx context.Context, path string) (domain.SongRecord, error) {
	rec, err := readSong(path)
	if err != nil {
		return domain.SongRecord{}, err
	}
	return a.svc.SetSong(ctx, rec)
}

func (a *app) inspect(ctx context.Context, path string) error {
	rec, err := a.activate(ctx, path)
	if err != nil {
		return err
	}
	w := &errWriter{w: a.stdout}
	w.printf("title:     %s\n", rec.Title)
	w.printf("ppq:       %d\n", rec.PPQ)
	w.printf("endOfSong: %d\n", rec.EndOfSong)
	w.printf("tracks:    %d\n", len(rec.Tracks))
	w.printf("events:    %d\n", rec.EventCount())
	for _, tr := range rec.Tracks {
		first, last := trackSpan(tr)
		w.printf("  %s  %4d events  ticks %d..%d\n", tr.ID, len(tr.Events), first, last)
	}
	return w.err
}

func trackSpan(tr domain.TrackRecord) (first, last uint64) {
	for i, ev := range tr.Events {
		end := uint64(ev.Ticks) + uint64(ev.Duration)
		if i == 0 || uint64(ev.Ticks) < first {
			first = uint64(ev.Ticks)
		}
		last = max(last, end)
	}
	return first, last
}

func (a *app) query(ctx context.Context, path string, start, end uint32, within bool, tracks []string) error {
	if _, err := a.activate(ctx, path); err != nil {
		return err
	}
	events, err := a.svc.GetEventsInRange(ctx, start, end, within, tracks)
	if err != nil {
		return err
	}
	if events == nil {
		events = []domain.EventRecord{}
	}
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(events)
}

func (a *app) convert(in, out string) error {
	rec, err := readSong(in)
	if err != nil {
		return err
	}
	if err := writeSong(out, rec); err != nil {
		return err
	}
	a.logger.Info("converted", "from", in, "to", out, "tracks", len(rec.Tracks), "events", rec.EventCount())
	return nil
}

func (a *app) save(ctx context.Context, name, path string) error {
	if _, err := a.activate(ctx, path); err != nil {
		return err
	}
	if err := a.svc.SaveSong(ctx, name); err != nil {
		return err
	}
	_, err := fmt.Fprintf(a.stdout, "saved %s\n", name)
	return err
}

func (a *app) load(ctx context.Context, name, out string) error {
	rec, err := a.svc.LoadSong(ctx, name)
	if err != nil {
		return err
	}
	return writeSong(out, rec)
}

func (a *app) list(ctx context.Context) error {
	names, err := a.svc.ListSongs(ctx)
	if err != nil {
		return err
	}
	w := &errWriter{w: a.stdout}
	for _, name := range names {
		w.printf("%s\n", name)
	}
	return w.err
}

func (a *app) remove(ctx context.Context, name string) error {
	existed, err := a.svc.DeleteSong(ctx, name)
	if err != nil {
		return err
	}
	if !existed {
		return domain.ErrNotFound{Entity: domain.EntitySong, ID: name}
	}
	_, err = fmt.Fprintf(a.stdout, "deleted %s\n", name)
	return err
}

func isMIDI(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mid", ".midi":
		return true
	}
	return false
}

func readSong(path string) (rec domain.SongRecord, err error) {
	f, err := os.Open(path) // #nosec G304: operator-supplied path
	if err != nil {
		return domain.SongRecord{}, err
	}
	defer func() { _ = f.Close() }()
	if isMIDI(path) {
		title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return midifile.Import(f, title)
	}
	format, err := codec.FormatFromPath(path)
	if err != nil {
		return domain.SongRecord{}, err
	}
	return codec.Decode(f, format)
}

func writeSong(path string, rec domain.SongRecord) (err error) {
	write := func(w io.Writer) error { return midifile.Export(w, rec) }
	if !isMIDI(path) {
		format, ferr := codec.FormatFromPath(path)
		if ferr != nil {
			return ferr
		}
		write = func(w io.Writer) error { return codec.Encode(w, rec, format) }
	}
	f, err := os.Create(path) // #nosec G304: operator-supplied path
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return write(f)
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()
	logger.Debug("metrics listening", "addr", ln.Addr().String())
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

// errWriter keeps the first write error.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
