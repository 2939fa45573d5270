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
	"strconv"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/mcsci/internal/client"
	"github.com/danmuck/mcsci/internal/config"
	"github.com/danmuck/mcsci/internal/logging"
	"github.com/danmuck/mcsci/internal/protocol/wire"
)

func main() {
	addr := flag.String("addr", "", "server address override")
	configPath := flag.String("config", "", "path to a client config.toml")
	flag.Parse()

	logger := logging.ConfigureRuntime()

	cfg := config.DefaultClientConfig()
	if *configPath != "" {
		loaded, err := config.LoadClientConfig(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load client config")
		}
		cfg = loaded
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := client.Dial(ctx, cfg, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect")
	}
	defer c.Close()

	c.OnInfo(func(text string) { fmt.Println("[info]", text) })
	c.OnStatus(func(text string) { fmt.Println("[status]", text) })
	c.OnExtensionResponse(func(usage uint64, text string) {
		fmt.Printf("[usage %d] %s\n", usage, text)
	})

	if err := c.Hello(); err != nil {
		log.Fatal().Err(err).Msg("greeting failed")
	}
	fmt.Println("connected to", cfg.Addr)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "mcsci> ",
		HistoryFile: historyPath(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("readline init failed")
	}
	defer rl.Close()

	repl(c, rl)
}

// repl forwards raw protocol lines and handles two local commands: "wait"
// pumps asynchronous extension output, "exit" quits cleanly.
func repl(c *client.Client, rl *readline.Instance) {
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				c.Quit()
				return
			}
			fmt.Println("error:", err)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		word, rest, _ := strings.Cut(line, " ")
		switch word {
		case "exit", "quit":
			if err := c.Quit(); err != nil {
				fmt.Println("error:", err)
			}
			return
		case "wait":
			pump(c, rest)
		default:
			resp, err := c.Raw(line)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Println(wire.Format(resp))
		}
	}
}

// pump blocks for n server lines (default 1); out-of-band lines print via
// the client callbacks.
func pump(c *client.Client, arg string) {
	n := 1
	if arg = strings.TrimSpace(arg); arg != "" {
		v, err := strconv.Atoi(arg)
		if err != nil || v < 1 {
			fmt.Println("usage: wait [count]")
			return
		}
		n = v
	}
	for i := 0; i < n; i++ {
		r, err := c.Pump()
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		switch r.Kind {
		case wire.Info, wire.Status, wire.ExtensionResponse:
		default:
			fmt.Println(wire.Format(r))
		}
	}
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".mcsci_history")
}
