package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nats-io/nats.go"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/sync/errgroup"

	"ordercancel/internal/config"
	"ordercancel/internal/httpapi"
	"ordercancel/internal/listener"
	"ordercancel/internal/model"
	"ordercancel/internal/pipeline"
	"ordercancel/internal/predict"
	"ordercancel/internal/review"
	"ordercancel/internal/storage"
	"ordercancel/internal/worker"
)

func main() {
	cfg, err := config.Load()
	must(err)
	slog.SetDefault(cfg.Logger())

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	cmd := os.Args[1]
	switch cmd {
	case "predict":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "csv, xls or xlsx export")
		output := fs.String("output", "", "optional output xlsx path")
		describe := fs.Bool("describe", false, "print the main predictive fields and exit")
		q := pageFlags(fs, cfg)
		_ = fs.Parse(os.Args[2:])
		if *describe {
			printDescriptions()
			return
		}
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}
		query, err := q()
		must(err)

		svc := newPredictService(cfg, db)
		info, err := os.Stat(*input)
		must(err)
		if info.Size() > cfg.MaxUploadBytes {
			must(fmt.Errorf("%s is %s, limit is %s", *input, humanize.Bytes(uint64(info.Size())), humanize.Bytes(uint64(cfg.MaxUploadBytes))))
		}
		res, err := svc.PredictFile(*input)
		must(err)

		printSummary(res.BatchID, res.Summary, len(res.Dropped))
		page, err := review.Paginate(res.Predictions, query)
		must(err)
		printPage(page)
		if *output != "" {
			batch, err := db.MustBatch(res.BatchID)
			must(err)
			must(review.ExportPredictionsToXLSX(batch, res.Predictions, res.Dropped, *output))
			fmt.Printf("exported %d rows to %s\n", len(res.Predictions), *output)
		}
	case "review":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		batchID := fs.String("batchId", "", "batch id")
		q := pageFlags(fs, cfg)
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*batchID) == "" {
			must(fmt.Errorf("--batchId is required"))
		}
		query, err := q()
		must(err)
		batch, err := db.MustBatch(*batchID)
		must(err)
		preds, err := db.GetPredictions(batch.ID)
		must(err)
		dropped, err := db.GetDroppedRows(batch.ID)
		must(err)
		printSummary(batch.ID, review.Summarize(preds), len(dropped))
		page, err := review.Paginate(preds, query)
		must(err)
		printPage(page)
	case "batches":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 20, "max batches")
		_ = fs.Parse(os.Args[2:])
		rows, err := db.ListBatches(*limit)
		must(err)
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Batch", "File", "Format", "Rows In", "Rows Out", "Created"})
		for _, b := range rows {
			table.Append([]string{b.ID, b.SourceName, b.Format, humanize.Comma(int64(b.RowsIn)), humanize.Comma(int64(b.RowsOut)), b.CreatedAt})
		}
		table.Render()
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		batchID := fs.String("batchId", "", "batch id")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*batchID) == "" {
			must(fmt.Errorf("--batchId is required"))
		}
		path := *out
		if strings.TrimSpace(path) == "" {
			path = filepath.Join(cfg.OutputDir, *batchID+".xlsx")
		}
		batch, err := db.MustBatch(*batchID)
		must(err)
		preds, err := db.GetPredictions(batch.ID)
		must(err)
		if len(preds) == 0 {
			must(fmt.Errorf("no predictions for batchId=%s", batch.ID))
		}
		dropped, err := db.GetDroppedRows(batch.ID)
		must(err)
		must(review.ExportPredictionsToXLSX(batch, preds, dropped, path))
		fmt.Printf("exported %d rows to %s\n", len(preds), path)
	case "serve":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		withHTTP := fs.Bool("http", true, "serve the HTTP API on HTTP_ADDR")
		withNats := fs.Bool("nats", true, "consume prediction requests from NATS_SUBJECT")
		_ = fs.Parse(os.Args[2:])
		if !*withHTTP && !*withNats {
			must(fmt.Errorf("nothing to serve: both --http and --nats are off"))
		}
		svc := newPredictService(cfg, db)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		g, gctx := errgroup.WithContext(ctx)

		if *withHTTP {
			e := httpapi.New(svc, db, httpapi.Options{
				PageSize:       cfg.PageSize,
				MaxUploadBytes: cfg.MaxUploadBytes,
				RateLimit:      cfg.RateLimitRPS,
			}, slog.Default())
			g.Go(func() error {
				slog.Info("http listening", "addr", cfg.HTTPAddr)
				if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
				defer done()
				return e.Shutdown(shutdownCtx)
			})
		}
		if *withNats {
			must(cfg.Require("NATS_URL", cfg.NatsURL))
			nc, err := nats.Connect(cfg.NatsURL, nats.Name("ordercancel"))
			must(err)
			defer nc.Close()
			w := worker.New(nc, svc, worker.Options{
				Subject:        cfg.NatsSubject,
				Queue:          cfg.NatsQueue,
				PageSize:       cfg.PageSize,
				MaxUploadBytes: cfg.MaxUploadBytes,
			}, slog.Default())
			g.Go(func() error { return w.Run(gctx) })
		}
		must(g.Wait())
	case "watch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		dir := fs.String("dir", cfg.WatchDir, "inbox directory")
		export := fs.Bool("export", cfg.WatchAutoExport, "write an xlsx next to each processed batch")
		_ = fs.Parse(os.Args[2:])
		svc := newPredictService(cfg, db)
		l := listener.NewService(svc, listener.Options{
			Dir:        *dir,
			OutputDir:  cfg.OutputDir,
			Settle:     time.Duration(cfg.WatchSettleMs) * time.Millisecond,
			AutoExport: *export,
		}, slog.Default())
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		must(l.Run(ctx))
	default:
		usage()
		os.Exit(1)
	}
}

func newPredictService(cfg config.Config, db *storage.DB) *predict.Service {
	must(cfg.Require("ARTIFACT_PATH", cfg.ArtifactPath))
	bundle, err := model.Load(cfg.ArtifactPath)
	must(err)
	must(db.SetMetadata("artifact_fingerprint", bundle.Fingerprint))
	must(db.SetMetadata("artifact_version", bundle.Version))
	svc, err := predict.NewService(db, bundle, pipeline.DefaultConfig(), slog.Default())
	must(err)
	return svc
}

func pageFlags(fs *flag.FlagSet, cfg config.Config) func() (review.Query, error) {
	page := fs.Int("page", 1, "page number, 1-based")
	size := fs.Int("size", cfg.PageSize, "rows per page (10|25|50|100)")
	sortBy := fs.String("sort", "", "identifier|label")
	desc := fs.Bool("desc", false, "sort descending")
	return func() (review.Query, error) {
		key, err := review.ParseSortKey(*sortBy)
		if err != nil {
			return review.Query{}, err
		}
		return review.Query{Page: *page, Size: *size, SortBy: key, Descending: *desc}, nil
	}
}

func printSummary(batchID string, s review.Summary, dropped int) {
	fmt.Printf("batch %s\n", batchID)
	fmt.Printf("total transaksi: %s  selesai: %s  batal: %s  dilewati: %s\n",
		humanize.Comma(int64(s.Total)), humanize.Comma(int64(s.Completed)), humanize.Comma(int64(s.Canceled)), humanize.Comma(int64(dropped)))
}

func printPage(p review.Page) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"No", "No. Resi", "Prediksi"})
	for _, item := range p.Items {
		table.Append([]string{fmt.Sprint(item.Position), item.Identifier, string(item.Label)})
	}
	table.Render()
	fmt.Printf("page %d of %d (%s rows)\n", p.Page, p.TotalPages, humanize.Comma(int64(p.Total)))
}

func printDescriptions() {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Fitur", "Deskripsi"})
	for _, d := range pipeline.FeatureDescriptions {
		table.Append([]string{d.Name, d.Description})
	}
	table.Render()
}

func usage() {
	fmt.Println("usage: ordercancel <command>")
	fmt.Println("commands:")
	fmt.Println("  predict --input=orders.xlsx [--output=./out/result.xlsx] [--page=1 --size=10 --sort=identifier|label --desc]")
	fmt.Println("  predict --describe")
	fmt.Println("  review --batchId=... [--page=1 --size=10 --sort=identifier|label --desc]")
	fmt.Println("  batches [--limit=20]")
	fmt.Println("  export:xlsx --batchId=... [--out=./out/result.xlsx]")
	fmt.Println("  serve [--http=true --nats=true]")
	fmt.Println("  watch [--dir=./data/inbox --export=true]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
