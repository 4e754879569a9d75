package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"
	"github.com/spf13/pflag"
	"github.com/wheelibin/yeetlight/internal/config"
	"github.com/wheelibin/yeetlight/internal/constants"
	"github.com/wheelibin/yeetlight/internal/events"
	"github.com/wheelibin/yeetlight/internal/gateway"
	"github.com/wheelibin/yeetlight/internal/models"
	"github.com/wheelibin/yeetlight/internal/repos"
)

const usage = `usage: yeetlight [flags] <command> [args]

commands:
  status                      show every bulb
  on | off | reset            power (reset forgets the power state locally)
  brightness <1-100>
  temperature <1700-6500>
  color <#rrggbb>
  link <name> <on|off>        mirror commands to a linked bulb
  retry <attribute>           resend a failed value
  rollback <attribute>        drop a failed value
  refresh                     re-fetch status of every bulb
  watch                       stream bulb changes
  history                     recent commands from the ledger

flags:
`

func main() {

	fs := pflag.NewFlagSet("yeetlight", pflag.ExitOnError)
	config.Flags(fs)
	bulb := fs.StringP("bulb", "b", "", "bulb name")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := cfg.Log.NewLogger(os.Stderr)

	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := &cli{
		logger: logger,
		cfg:    cfg,
		daemon: "http://" + cfg.Listen,
		bulb:   *bulb,
	}
	c.client = gateway.NewGateway(logger, c.daemon, cfg.RequestTimeout)

	if err := c.run(ctx, args[0], args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type cli struct {
	logger *log.Logger
	cfg    *config.Config
	client *gateway.Gateway
	daemon string
	bulb   string
}

func (c *cli) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "status":
		return c.status(ctx)
	case "watch":
		return c.watch(ctx)
	case "history":
		return c.history()
	case "refresh":
		_, err := c.client.POST(ctx, "/refresh", nil)
		return err
	case "on", "off", "reset":
		return c.command(ctx, "/power", url.Values{"state": {command}})
	case "brightness", "temperature":
		if len(args) != 1 {
			return fmt.Errorf("%s needs a value", command)
		}
		return c.command(ctx, "/"+command, url.Values{command: {args[0]}})
	case "color":
		if len(args) != 1 {
			return fmt.Errorf("color needs a value")
		}
		color, err := models.ParseColor(args[0])
		if err != nil {
			return err
		}
		return c.command(ctx, "/color", url.Values{"rgb": {color.Hex()}})
	case "link":
		if len(args) != 2 {
			return fmt.Errorf("link needs a bulb name and on or off")
		}
		power, err := models.ParsePower(args[1])
		if err != nil || power == models.PowerUnknown {
			return fmt.Errorf("link state must be on or off")
		}
		return c.command(ctx, "/links", url.Values{"link": {args[0]}, "enable": {fmt.Sprint(power == models.PowerOn)}})
	case "retry", "rollback":
		if len(args) != 1 {
			return fmt.Errorf("%s needs an attribute", command)
		}
		return c.command(ctx, "/"+command, url.Values{"attribute": {args[0]}})
	}
	return fmt.Errorf("unknown command %q", command)
}

// command sends a bulb command to the daemon and prints any failures recorded for it
func (c *cli) command(ctx context.Context, path string, query url.Values) error {
	if c.bulb == "" {
		return fmt.Errorf("--bulb is required")
	}
	query.Set("bulb", c.bulb)

	since := time.Now().Add(-time.Second)
	_, err := c.client.POST(ctx, path, query)
	c.printFailures(since)
	return err
}

// openLedger opens the command ledger when the daemon keeps it in a file
func (c *cli) openLedger() (*repos.CommandRepo, func(), error) {
	if c.cfg.Database == "" || c.cfg.Database == constants.DefaultDatabase {
		return nil, nil, fmt.Errorf("the daemon keeps its ledger in memory, set database to a file")
	}

	db, err := repos.Open(c.cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	ledger, err := repos.NewCommandRepo(c.logger, db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return ledger, func() { db.Close() }, nil
}

func (c *cli) history() error {
	ledger, closeLedger, err := c.openLedger()
	if err != nil {
		return err
	}
	defer closeLedger()

	records, err := ledger.Recent(20)
	if err != nil {
		return err
	}
	for _, r := range records {
		if c.bulb != "" && r.Bulb != c.bulb {
			continue
		}
		outcome := "ok"
		if !r.Succeeded {
			outcome = "failed: " + r.Error
		}
		via := ""
		if r.LinkedFrom != "" {
			via = " via " + r.LinkedFrom
		}
		fmt.Printf("%s %s%s %s=%s %s\n", r.IssuedAt.Format(time.DateTime), r.Bulb, via, r.Attribute, r.Value, outcome)
	}
	return nil
}

// printFailures lists the failures recorded for the bulb since the command was sent
func (c *cli) printFailures(since time.Time) {
	ledger, closeLedger, err := c.openLedger()
	if err != nil {
		c.logger.Debug("ledger unavailable", "err", err)
		return
	}
	defer closeLedger()

	// linked commands resolve in the background, give them a moment
	time.Sleep(500 * time.Millisecond)

	failures, err := ledger.Failures(c.bulb, since)
	if err != nil {
		c.logger.Debug("ledger unavailable", "err", err)
		return
	}
	for _, f := range failures {
		kind := "command"
		if f.Prerequisite {
			kind = "power-on prerequisite"
		}
		fmt.Printf("failed %s %s=%s: %s\n", kind, f.Attribute, f.Value, f.Error)
	}
}

func (c *cli) status(ctx context.Context) error {
	body, err := c.client.GET(ctx, "/bulbs", nil)
	if err != nil {
		return err
	}

	var snapshots []models.BulbSnapshot
	if err := json.Unmarshal(body, &snapshots); err != nil {
		return fmt.Errorf("Error decoding bulbs: %w", err)
	}
	if c.bulb != "" {
		snapshots = lo.Filter(snapshots, func(s models.BulbSnapshot, _ int) bool { return s.Name == c.bulb })
	}
	for _, s := range snapshots {
		fmt.Println(formatSnapshot(s))
	}
	return nil
}

func (c *cli) watch(ctx context.Context) error {
	subscriber := events.NewSubscriber(c.logger, c.daemon)
	return subscriber.Subscribe(ctx, func(s models.BulbSnapshot) {
		if c.bulb != "" && s.Name != c.bulb {
			return
		}
		fmt.Println(formatSnapshot(s))
	})
}

func formatSnapshot(s models.BulbSnapshot) string {
	if !s.Initialised {
		return fmt.Sprintf("%s (%s): unavailable", s.Name, s.Addr)
	}

	attrs := lo.Filter(models.Attributes, func(a models.Attribute, _ int) bool {
		_, ok := s.Attributes[a]
		return ok
	})
	parts := lo.Map(attrs, func(a models.Attribute, _ int) string {
		v := s.Attributes[a]
		switch {
		case v.Failed:
			return fmt.Sprintf("%s=%s (failed: %s, was %s)", a, v.Value, v.Error, v.Confirmed)
		case v.Pending:
			return fmt.Sprintf("%s=%s (pending)", a, v.Value)
		}
		return fmt.Sprintf("%s=%s", a, v.Value)
	})

	line := fmt.Sprintf("%s (%s): %s", s.Name, s.Addr, strings.Join(parts, " "))
	if len(s.Links) > 0 {
		links := lo.Map(s.Links, func(l models.Link, _ int) string {
			if l.Enable {
				return l.Name + "*"
			}
			return l.Name
		})
		sort.Strings(links)
		line += " links: " + strings.Join(links, ",")
	}
	return line
}
