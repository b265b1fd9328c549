// Command screener prints polyscreen views in the terminal.
//
//	screener dashboard
//	screener -sort volume24hr -page 2 events
//	screener -search bitcoin -min-yes 0.4 -max-yes 0.6 markets
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/polyscreen/polyscreen-backend/internal/config"
	"github.com/polyscreen/polyscreen-backend/internal/format"
	"github.com/polyscreen/polyscreen-backend/internal/log"
	"github.com/polyscreen/polyscreen-backend/internal/markets"
	"github.com/polyscreen/polyscreen-backend/internal/models"
	"github.com/polyscreen/polyscreen-backend/internal/views"
	"github.com/polyscreen/polyscreen-backend/pkg/client"
)

type options struct {
	apiURL    string
	search    string
	category  string
	sort      string
	order     string
	page      int
	pageSize  int
	minVolume float64
	minYes    float64
	maxYes    float64
	newOnly   bool
	ending    bool
	expand    bool
	timeout   time.Duration
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var opts options
	flags := flag.NewFlagSet("screener", flag.ExitOnError)
	flags.StringVar(&opts.apiURL, "api", cfg.Client.APIBaseURL, "polyscreen API base URL")
	flags.StringVar(&opts.search, "search", "", "case-insensitive title/question search")
	flags.StringVar(&opts.category, "category", "", "comma separated categories (events only)")
	flags.StringVar(&opts.sort, "sort", "", "sort key")
	flags.StringVar(&opts.order, "order", "desc", "asc or desc")
	flags.IntVar(&opts.page, "page", 1, "page number")
	flags.IntVar(&opts.pageSize, "page-size", 20, "rows per page")
	flags.Float64Var(&opts.minVolume, "min-volume", 0, "minimum total volume")
	flags.Float64Var(&opts.minYes, "min-yes", 0, "minimum yes price (markets only)")
	flags.Float64Var(&opts.maxYes, "max-yes", 1, "maximum yes price (markets only)")
	flags.BoolVar(&opts.newOnly, "new", false, "only new entries")
	flags.BoolVar(&opts.ending, "ending-soon", false, "only entries ending within a week")
	flags.BoolVar(&opts.expand, "expand", false, "list the markets of every event")
	flags.DurationVar(&opts.timeout, "timeout", 15*time.Second, "request timeout")
	flags.Parse(os.Args[1:])

	mode := "dashboard"
	if flags.NArg() > 0 {
		mode = flags.Arg(0)
	}

	logger := log.NewNop()
	if cfg.IsDev() {
		if l, err := log.NewSugar(cfg.Env); err == nil {
			logger = l
		}
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	c := client.New(opts.apiURL, nil, logger)
	out := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer out.Flush()

	switch mode {
	case "dashboard":
		err = runDashboard(ctx, c, out)
	case "events":
		err = runEvents(ctx, c, opts, out)
	case "markets":
		err = runMarkets(ctx, c, opts, out)
	default:
		err = fmt.Errorf("unknown view %q (dashboard, events, markets)", mode)
	}
	if err != nil {
		out.Flush()
		fmt.Fprintf(os.Stderr, "screener: %v\n", err)
		os.Exit(1)
	}
}

func (o options) criteria(markets bool) views.Criteria {
	c := views.Criteria{
		New:        o.newOnly,
		EndingSoon: o.ending,
		Search:     o.search,
	}
	if o.minVolume > 0 {
		r := views.OpenRange()
		r.Min = o.minVolume
		c.TotalVolume = &r
	}
	if markets && (o.minYes > 0 || o.maxYes < 1) {
		c.YesPrice = &views.Range{Min: o.minYes, Max: o.maxYes}
	}
	if !markets && o.category != "" {
		c.Categories = strings.Split(o.category, ",")
	}
	return c
}

// prepare dispatches the interactions the flags describe.
func (o options) prepare(dispatch func(views.Action)) error {
	dispatch(views.SetPageSize{Size: o.pageSize})
	if o.sort != "" {
		dispatch(views.ToggleSort{Key: views.SortKey(o.sort)})
		if o.order == string(views.OrderAsc) {
			dispatch(views.ToggleSort{Key: views.SortKey(o.sort)})
		} else if o.order != string(views.OrderDesc) {
			return fmt.Errorf("unknown order %q", o.order)
		}
	}
	dispatch(views.SetPage{Page: o.page})
	return nil
}

func runEvents(ctx context.Context, c *client.Client, o options, w io.Writer) error {
	if o.sort != "" && !validKey(o.sort, views.EventSortKeys) {
		return fmt.Errorf("unknown event sort key %q", o.sort)
	}
	s := client.NewEventSession(c, client.SessionOptions{PageSize: o.pageSize})
	s.Dispatch(views.SetCriteria{Criteria: o.criteria(false)})
	if err := s.Refresh(ctx); err != nil {
		return err
	}
	if err := o.prepare(s.Dispatch); err != nil {
		return err
	}

	page := s.View()
	fmt.Fprintln(w, "EVENT\tVOLUME\t24H\tLIQUIDITY\tVLR\tENDS\tMARKETS")
	for _, e := range page.Items {
		vlr := views.VolumeToLiquidity(e.Volume, e.Liquidity)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s (%s)\t%s\t%d\n",
			truncate(e.Title, 60),
			format.Volume(e.Volume),
			format.Volume(e.Volume24hr),
			format.Currency(e.Liquidity),
			format.Ratio(vlr), format.ClassifyVLR(vlr),
			format.Date(e.EndDate),
			len(e.Markets),
		)
		if o.expand {
			for _, m := range e.Markets {
				fmt.Fprintf(w, "  - %s\t%s\t%s\t\tyes %s / no %s\t\t\n",
					truncate(marketLabel(m), 56),
					format.Volume(m.Volume),
					format.Volume(m.Volume24hr),
					format.Price(m.OutcomeYesPrice),
					format.Price(m.OutcomeNoPrice),
				)
			}
		}
	}
	printFooter(w, page.Page, page.TotalPages, page.TotalItems)
	return nil
}

func runMarkets(ctx context.Context, c *client.Client, o options, w io.Writer) error {
	if o.sort != "" && !validKey(o.sort, views.MarketSortKeys) {
		return fmt.Errorf("unknown market sort key %q", o.sort)
	}
	s := client.NewMarketSession(c, client.SessionOptions{PageSize: o.pageSize})
	s.Dispatch(views.SetCriteria{Criteria: o.criteria(true)})
	if err := s.Refresh(ctx); err != nil {
		return err
	}
	if err := o.prepare(s.Dispatch); err != nil {
		return err
	}

	page := s.View()
	fmt.Fprintln(w, "MARKET\tYES\tNO\t1D\tVOLUME\t1MO\tLIQUIDITY\tENDS")
	for _, m := range page.Items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncate(marketLabel(m), 60),
			format.Price(m.OutcomeYesPrice),
			format.Price(m.OutcomeNoPrice),
			optionalPercentage(m.OneDayPriceChange),
			format.Volume(m.Volume),
			optionalVolume(m.Volume1mo),
			format.Currency(m.Liquidity),
			format.Date(m.EndDate),
		)
	}
	printFooter(w, page.Page, page.TotalPages, page.TotalItems)
	return nil
}

func runDashboard(ctx context.Context, c *client.Client, w io.Writer) error {
	d, err := c.Dashboard(ctx)
	if err != nil {
		return err
	}

	printEvents(w, "Hot markets (24h volume)", d.HotMarkets)
	printEvents(w, "Top liquidity", d.TopLiquidity)
	printMarkets(w, "Top gainers (1d)", d.TopGainers)
	printMarkets(w, "Top losers (1d)", d.TopLosers)
	printMarkets(w, "Controversial", d.Controversial)
	printMarkets(w, "Confident bets", d.ConfidentBets)
	if !d.GeneratedAt.IsZero() {
		fmt.Fprintf(w, "generated %s\n", d.GeneratedAt.Format(time.RFC3339))
	}
	return nil
}

func printEvents(w io.Writer, title string, entries []markets.EventEntry) {
	fmt.Fprintf(w, "%s\n", strings.ToUpper(title))
	if len(entries) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for i, e := range entries {
		fmt.Fprintf(w, "  %d. %s\t%s\tVLR %s\n", i+1, truncate(e.Title, 60), e.Metric, e.VLR)
	}
	fmt.Fprintln(w)
}

func printMarkets(w io.Writer, title string, entries []markets.MarketEntry) {
	fmt.Fprintf(w, "%s\n", strings.ToUpper(title))
	if len(entries) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for i, m := range entries {
		fmt.Fprintf(w, "  %d. %s\t%s\tyes %s / no %s\n", i+1, truncate(marketLabel(m.Market), 60), m.Metric, m.Yes, m.No)
	}
	fmt.Fprintln(w)
}

func printFooter(w io.Writer, page, totalPages, total int) {
	fmt.Fprintf(w, "\npage %d of %d (%d results)\n", page, totalPages, total)
}

func marketLabel(m models.Market) string {
	if m.GroupItemTitle != "" {
		return m.GroupItemTitle
	}
	return m.Question
}

func optionalPercentage(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return format.Percentage(*v)
}

func optionalVolume(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return format.Volume(*v)
}

func validKey(key string, allowed []views.SortKey) bool {
	_, ok := views.ParseSortKey(key, allowed)
	return ok
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
