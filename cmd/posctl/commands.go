// cmd/posctl/commands.go
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	redis_a "github.com/ammerola/pos-ledger/internal/adapters/redis_adapter"
	"github.com/ammerola/pos-ledger/internal/app"
	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/services"
	"github.com/ammerola/pos-ledger/internal/export"
	"github.com/ammerola/pos-ledger/internal/importer"
	"github.com/ammerola/pos-ledger/internal/pkg/config"
	"github.com/ammerola/pos-ledger/internal/pkg/logger"
)

// session is an opened ledger for the duration of one command
type session struct {
	ledger *services.Ledger
	logger *slog.Logger
	close  func()
}

func open(c *cli.Context) (*session, error) {
	log := logger.NewLogger(&logger.LogConfig{Level: c.String("log-level"), Format: "text"}, c.App.ErrWriter)

	cfg, err := config.Load(log)
	if err != nil {
		return nil, err
	}

	var client *redis.Client
	var rdb redis.UniversalClient
	if app.NeedsRedis(cfg) {
		if client, err = app.ConnectRedis(c.Context, cfg, log); err != nil {
			return nil, err
		}
		rdb = client
	}

	backend, err := app.OpenBackend(c.Context, cfg, rdb, log)
	if err != nil {
		if client != nil {
			client.Close()
		}
		return nil, err
	}

	var opts []services.Option
	if client != nil {
		cache := redis_a.NewCache(client, cfg.Redis.TTL, log)
		opts = append(opts, services.WithChangeHook(services.InvalidateAnalytics(cache, log)))
	}

	return &session{
		ledger: app.NewLedger(cfg, backend, log, opts...),
		logger: log,
		close: func() {
			if err := backend.Close(); err != nil {
				log.Warn("failed to close store", slog.String("error", err.Error()))
			}
			if client != nil {
				client.Close()
			}
		},
	}, nil
}

func seedAction(c *cli.Context) error {
	s, err := open(c)
	if err != nil {
		return err
	}
	defer s.close()

	if path := c.Path("file"); path != "" {
		report, err := importer.New(s.ledger, s.logger).ImportCatalog(c.Context, path)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "imported %d products, %d rows rejected\n", report.Applied, len(report.Rejected))
		for _, r := range report.Rejected {
			fmt.Fprintf(c.App.Writer, "  row %d: %s\n", r.Row, r.Reason)
		}
		return nil
	}

	products, err := s.ledger.ListProducts(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "catalog holds %d products\n", len(products))
	return nil
}

func productsAction(c *cli.Context) error {
	s, err := open(c)
	if err != nil {
		return err
	}
	defer s.close()

	products, err := s.ledger.ListProducts(c.Context)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tBUY\tSELL\tSTOCK\tMARGIN\tSTATUS")
	for _, p := range products {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s%%\t%s\n",
			p.ID, p.Name, p.Category,
			p.BuyingPrice.StringFixed(2), p.SellingPrice.StringFixed(2),
			p.Stock, p.ProfitMargin().StringFixed(2), p.Status())
	}
	return tw.Flush()
}

func salesAction(c *cli.Context) error {
	s, err := open(c)
	if err != nil {
		return err
	}
	defer s.close()

	var sales []domain.Sale
	if c.Bool("pending") {
		sales, err = s.ledger.ListPendingOfflineSales(c.Context)
	} else {
		sales, err = s.ledger.ListSales(c.Context)
	}
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tEMPLOYEE\tPAYMENT\tTOTAL\tPROFIT\tITEMS")
	for _, sale := range sales {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%d\n",
			sale.ID, sale.CreatedAt.Local().Format(time.DateTime), sale.Employee, sale.PaymentMethod,
			sale.Total.StringFixed(2), sale.TotalProfit.StringFixed(2), len(sale.Items))
	}
	return tw.Flush()
}

func syncAction(c *cli.Context) error {
	s, err := open(c)
	if err != nil {
		return err
	}
	defer s.close()

	n, err := s.ledger.SyncPendingOfflineSales(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "synced %d offline sales\n", n)
	return nil
}

func exportAction(c *cli.Context) error {
	kind, err := export.ParseKind(c.Args().First())
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(c.String("format"))
	if err != nil {
		return err
	}
	opts := export.SalesOptions{Month: c.String("month"), IncludePending: c.Bool("include-pending")}
	if err := opts.Validate(); err != nil {
		return err
	}

	s, err := open(c)
	if err != nil {
		return err
	}
	defer s.close()

	out := c.Path("out")
	if out == "" {
		out = export.Filename(kind, format, time.Now())
	}
	if out == "-" {
		return export.NewExporter(s.ledger).Export(c.Context, c.App.Writer, kind, format, opts)
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	if err := export.NewExporter(s.ledger).Export(c.Context, f, kind, format, opts); err != nil {
		f.Close()
		os.Remove(out)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}

	fmt.Fprintf(c.App.Writer, "wrote %s\n", out)
	return nil
}

func hashPasswordAction(c *cli.Context) error {
	password := c.String("password")
	if password == "" {
		var err error
		if password, err = readPassword(c.App.Reader); err != nil {
			return err
		}
	}

	cost := c.Int("cost")
	if cost == 0 {
		if cfg, err := config.Load(slog.New(slog.DiscardHandler)); err == nil {
			cost = cfg.Security.BcryptCost
		}
	}

	hash, err := services.HashPassword(password, cost)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, hash)
	return nil
}

func readPassword(r io.Reader) (string, error) {
	if r == nil {
		r = os.Stdin
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password is required")
	}
	return password, nil
}
