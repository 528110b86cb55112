package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"errguard/internal/app"
)

var cli struct {
	Fetch struct {
		URL    string `arg:"" help:"URL to fetch."`
		Method string `short:"m" default:"GET" help:"HTTP method."`
	} `cmd:"" help:"Fetch a URL with retry and backoff."`

	Normalize struct {
		Message string `arg:"" help:"Raw error message to classify."`
	} `cmd:"" help:"Resolve a message to its canonical error identifier."`

	Locale struct {
		Message string `arg:"" help:"Raw error message."`
	} `cmd:"" help:"Recover the locale a message was written in."`

	Tail struct {
		N int `short:"n" default:"20" help:"Number of records."`
	} `cmd:"" help:"Show the most recent stored error records."`

	Purge struct {
		OlderThan int `default:"30" help:"Delete records older than this many days."`
	} `cmd:"" help:"Purge old records from the store."`
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("errguard"),
		kong.Description("Call-retry and error-normalization toolbox."))

	ctx := context.Background()
	a, err := app.New(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "errguard:", err)
		os.Exit(1)
	}
	defer func() { _ = a.Close() }()

	if err := run(ctx, kctx.Command(), a); err != nil {
		fmt.Fprintln(os.Stderr, "errguard:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, a *app.App) error {
	switch command {
	case "fetch <url>":
		resp, err := a.Fetcher.Fetch(ctx, cli.Fetch.URL, nil)
		if err != nil {
			return err
		}
		fmt.Printf("status: %d\n", resp.StatusCode())
		fmt.Println(resp.Text())
		return nil

	case "normalize <message>":
		id, vars := a.Normalizer.Normalize(cli.Normalize.Message)
		if id == "" {
			fmt.Println("no match")
			return nil
		}
		fmt.Println(string(id))
		for k, v := range vars {
			fmt.Printf("  %s=%q\n", k, v)
		}
		return nil

	case "locale <message>":
		locale := a.Normalizer.LocaleOf(cli.Locale.Message)
		if locale == "" {
			fmt.Println("no match")
			return nil
		}
		fmt.Println(locale)
		return nil

	case "tail":
		if a.Store == nil {
			return fmt.Errorf("no record store configured (set STORE_PATH)")
		}
		entries, err := a.Store.Recent(ctx, cli.Tail.N)
		if err != nil {
			return err
		}
		for _, e := range entries {
			line, merr := json.Marshal(e.Record)
			if merr != nil {
				return merr
			}
			fmt.Printf("%s %s\n", e.Severity, line)
		}
		return nil

	case "purge":
		if a.Store == nil {
			return fmt.Errorf("no record store configured (set STORE_PATH)")
		}
		cutoff := time.Now().AddDate(0, 0, -cli.Purge.OlderThan)
		n, err := a.Store.Purge(ctx, cutoff)
		if err != nil {
			return err
		}
		fmt.Printf("purged %d records\n", n)
		return nil

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}
