// Command pyramidclient is a terminal front end for the card game: it drives
// the session store and chat channel from stdin and renders whatever
// snapshot the server last returned. All rules live on the server.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pyramidclient/internal/api"
	"pyramidclient/internal/channel"
	"pyramidclient/internal/config"
	"pyramidclient/internal/session"
	"pyramidclient/pkg/types"
)

func main() {
	name := flag.String("name", "anonymous", "chat display name / join identity")
	clientTurn := flag.Bool("client-turn", false, "send the identity bound at join instead of the server-reported turn player")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	turnMode := session.ServerResolvedTurn
	if *clientTurn {
		turnMode = session.ClientSuppliedTurn
	}

	store := session.New(
		api.New(cfg.APIBaseURL, api.WithTimeout(cfg.HTTPTimeout)),
		session.WithTurnMode(turnMode),
		session.WithLogger(logger),
	)
	chat := channel.New(cfg.ChannelURL,
		channel.WithReconnectDelay(cfg.ReconnectDelay),
		channel.WithLogger(logger),
	)
	defer chat.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	// Print chat as it arrives.
	g.Go(func() error {
		printed := 0
		ticker := time.NewTicker(300 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				msgs := chat.Messages()
				for ; printed < len(msgs); printed++ {
					m := msgs[printed]
					fmt.Printf("[%s] %s: %s\n", m.Timestamp.Format("15:04:05"), m.Sender, m.Content)
				}
				if printed > len(msgs) {
					// Log was cleared by a session switch.
					printed = 0
				}
			}
		}
	})

	g.Go(func() error {
		defer cancel()
		return repl(ctx, store, chat, *name)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func repl(ctx context.Context, store *session.Store, chat *channel.Manager, name string) error {
	fmt.Println("commands: create <32|52> | join <gameId> | load <gameId> | open | play <cardId> | say <text> | board | quit")

	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		cmd, rest, _ := strings.Cut(line, " ")

		switch cmd {
		case "create":
			mode, err := strconv.Atoi(rest)
			if err != nil {
				fmt.Println("usage: create <32|52>")
				continue
			}
			snap, err := store.Create(ctx, session.Mode(mode))
			if report(err) {
				continue
			}
			fmt.Println("game:", snap.GameID)
			report(chat.Connect(ctx, snap.GameID))

		case "join":
			snap, err := store.Join(ctx, rest, name)
			if report(err) {
				continue
			}
			printBoard(snap)
			report(chat.Connect(ctx, snap.GameID))

		case "load":
			snap, err := store.Load(ctx, rest)
			if report(err) {
				continue
			}
			printBoard(snap)
			report(chat.Connect(ctx, snap.GameID))

		case "open":
			open, err := store.ListOpen(ctx)
			if report(err) {
				continue
			}
			if len(open) == 0 {
				fmt.Println("no open games")
			}
			for _, g := range open {
				fmt.Println(" ", g.ID)
			}

		case "play":
			snap, err := store.Play(ctx, rest)
			if report(err) {
				continue
			}
			printBoard(snap)

		case "say":
			err := chat.Send(ctx, store.GameID(), types.ChatMessage{Sender: name, Content: rest})
			if errors.Is(err, channel.ErrChannelNotReady) {
				fmt.Println("chat not connected yet, try again")
				continue
			}
			report(err)

		case "board":
			snap, ok := store.Snapshot()
			if !ok {
				fmt.Println("no game loaded")
				continue
			}
			printBoard(snap)

		case "quit", "exit":
			return nil

		default:
			fmt.Println("unknown command:", cmd)
		}
	}
	return sc.Err()
}

func report(err error) bool {
	if err == nil {
		return false
	}
	var srvErr *api.ServerError
	if errors.As(err, &srvErr) {
		fmt.Println("server:", srvErr.Reason)
		return true
	}
	fmt.Println("error:", err)
	return true
}

func printBoard(snap types.GameSnapshot) {
	fmt.Printf("game %s  turn %d  to play: %s  score %d-%d\n",
		snap.GameID, snap.TurnIndex, snap.TurnPlayer, snap.Score.Player1, snap.Score.Player2)
	for _, row := range snap.Board {
		for _, card := range row {
			suit := "?"
			if card.Suit != "" {
				suit = card.Suit[:1]
			}
			label := card.Value + suit
			switch {
			case card.Interactable():
				fmt.Printf("[%4s]", label)
			default:
				fmt.Printf(" %4s ", label)
			}
		}
		fmt.Println()
	}
}
