package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/tuannm99/novaorm/sqlclient"
)

const (
	prompt     = "novasql> "
	contPrompt = "      -> "
)

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".novasql_history"
	}
	return filepath.Join(home, ".novasql_history")
}

func main() {
	var (
		addr       = flag.String("addr", "127.0.0.1:8866", "server address")
		timeout    = flag.Duration("timeout", 3*time.Second, "dial timeout")
		rwTimeout  = flag.Duration("rw-timeout", 0, "per-statement timeout (0 = none)")
		histPath   = flag.String("history", defaultHistoryPath(), "history file path")
		histMax    = flag.Int("history-max", 2000, "max history lines loaded into memory")
		oneShotSQL = flag.String("c", "", "execute one SQL and exit (must end with ';')")
	)
	flag.Parse()

	cli, err := sqlclient.Dial(*addr, *timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = cli.Close() }()
	cli.SetRWTimeout(*rwTimeout)

	if strings.TrimSpace(*oneShotSQL) != "" {
		res, err := cli.Exec(*oneShotSQL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		printResult(os.Stdout, res)
		return
	}

	h := NewHistory(*histPath)
	_ = h.Load(*histMax)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = rl.Close() }()

	for _, line := range h.Lines() {
		_ = rl.SaveHistory(line)
	}

	fmt.Printf("connected to %s\n", *addr)
	fmt.Println("type \\help for help")
	repl(rl, cli, h, rl.Stdout())
}

func repl(rl *readline.Instance, cli *sqlclient.Client, h *History, out io.Writer) {
	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			// Ctrl+C clears a pending statement
			if buf.Len() > 0 {
				buf.Reset()
				rl.SetPrompt(prompt)
			}
			continue
		}
		if err != nil {
			fmt.Fprintln(out)
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if buf.Len() == 0 && isMetaCommand(line) {
			if quit := runMeta(out, h, line); quit {
				return
			}
			continue
		}

		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(line)
		if !statementComplete(buf.String()) {
			rl.SetPrompt(contPrompt)
			continue
		}

		stmt := strings.TrimSpace(buf.String())
		buf.Reset()
		rl.SetPrompt(prompt)
		_ = h.Append(stmt)

		execStatement(out, cli, stmt)
	}
}

// execStatement runs stmt; Ctrl+C while it runs cancels only this statement.
func execStatement(out io.Writer, cli *sqlclient.Client, stmt string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := cli.ExecContext(ctx, stmt)
	if err != nil {
		var se *sqlclient.ServerError
		if errors.As(err, &se) {
			fmt.Fprintf(out, "ERROR: %s\n", se.Message)
			return
		}
		fmt.Fprintf(out, "connection error: %v\n", err)
		return
	}
	printResult(out, res)
}

func runMeta(out io.Writer, h *History, line string) (quit bool) {
	switch line {
	case "\\q", "quit", "exit":
		return true
	case "\\help":
		fmt.Fprintln(out, `meta commands:
  \q | quit | exit       quit
  \history               print history
  \help                  show help

sql:
  end statement with ';'
  multiline is supported (the shell waits until ';')`)
	case "\\history":
		h.Print(out, 50)
	default:
		fmt.Fprintf(out, "unknown command: %s\n", line)
	}
	return false
}
