package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmagro/novax/internal/address"
	"github.com/dmagro/novax/internal/events"
	"github.com/dmagro/novax/internal/output"
)

type eventsOptions struct {
	contract   string
	identifier string
	from       int
	size       int
	sort       string
	since      string
	until      string
	filters    []string
}

func eventsCmd(a *app) *cobra.Command {
	var opts eventsOptions

	cmd := &cobra.Command{
		Use:   "events <contract> <identifier>",
		Short: "Search the events a contract emitted",
		Long: `Search the configured events index for the events named <identifier>
emitted by <contract>.

--filter POS:HEX keeps events whose indexed field at POS (0 is the first
field after the identifier) equals HEX. Times are RFC 3339 or unix seconds.

Examples:
  novax events erd1qqqqqqqqqqqqqpgq... swap --size 20 --sort timestamp:desc
  novax events erd1qqqqqqqqqqqqqpgq... swap --filter 0:5745474c44 --since 2024-01-01T00:00:00Z`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.contract, opts.identifier = args[0], args[1]
			return runEvents(cmd.Context(), a, opts)
		},
	}

	cmd.Flags().IntVar(&opts.from, "from", 0, "Index of the first hit")
	cmd.Flags().IntVar(&opts.size, "size", 0, "Maximum hits (0 = index default)")
	cmd.Flags().StringVar(&opts.sort, "sort", "", "Sort as FIELD[:asc|desc]")
	cmd.Flags().StringVar(&opts.since, "since", "", "Earliest event time")
	cmd.Flags().StringVar(&opts.until, "until", "", "Latest event time")
	cmd.Flags().StringArrayVar(&opts.filters, "filter", nil, "Indexed field filter POS:HEX (repeatable)")
	return cmd
}

func runEvents(ctx context.Context, a *app, opts eventsOptions) error {
	if a.cfg.Events.URL == "" {
		return fmt.Errorf("events.url is not configured")
	}
	contract, err := address.FromBech32(opts.contract)
	if err != nil {
		return fmt.Errorf("invalid contract: %w", err)
	}

	qopts := events.Options{From: opts.from, Size: opts.size}
	if opts.sort != "" {
		field, order, _ := strings.Cut(opts.sort, ":")
		qopts.Sort = &events.Sort{Field: field, Order: events.Order(strings.ToLower(order))}
	}
	if opts.since != "" || opts.until != "" {
		r := &events.TimestampRange{}
		if r.From, err = parseTime(opts.since); err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}
		if r.To, err = parseTime(opts.until); err != nil {
			return fmt.Errorf("invalid --until: %w", err)
		}
		qopts.Timestamp = r
	}
	var filters []events.Filter
	for _, raw := range opts.filters {
		f, err := parseFilter(raw)
		if err != nil {
			return err
		}
		filters = append(filters, f)
	}

	searcher := events.NewHTTPSearcher(events.SearcherConfig{
		URL:        a.cfg.Events.URL,
		Index:      a.cfg.Events.Index,
		Timeout:    a.cfg.Gateway.Timeout,
		MaxRetries: a.cfg.Gateway.MaxRetries,
		Logger:     a.logger,
	})
	records, err := events.Execute(ctx, events.NewExecutor(searcher), events.RawDecoder, contract, opts.identifier, qopts, filters...)
	if err != nil {
		return err
	}
	a.logger.Debug().Int("records", len(records)).Str("identifier", opts.identifier).Msg("events fetched")

	if a.format == output.JSON {
		return output.RenderEventsJSON(a.out, records)
	}
	output.RenderEventsTerminal(a.out, records)
	return nil
}

// parseTime accepts RFC 3339 or unix seconds. Empty is the zero time.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0), nil
	}
	return time.Parse(time.RFC3339, s)
}

func parseFilter(s string) (events.Filter, error) {
	pos, value, ok := strings.Cut(s, ":")
	if !ok {
		return events.Filter{}, fmt.Errorf("invalid filter %q: expected POS:HEX", s)
	}
	n, err := strconv.Atoi(pos)
	if err != nil || n < 0 {
		return events.Filter{}, fmt.Errorf("invalid filter %q: bad position", s)
	}
	b, err := parseHex(value)
	if err != nil {
		return events.Filter{}, fmt.Errorf("invalid filter %q: %w", s, err)
	}
	return events.Filter{Position: n, Value: b}, nil
}
