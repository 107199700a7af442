package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ghostroom/domain"
	"ghostroom/history"
	"ghostroom/imaging"
	"ghostroom/internal"
	"ghostroom/moderation"
	"ghostroom/session"
	"ghostroom/transport"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ghostroom error: %v\n", err)
	}
	os.Exit(code)
}

// run handles configuration loading, session lifecycle and the
// terminal input loop. Keeping it out of main() means every defer
// fires before the process exits.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Resolve the room token: first CLI argument, or a fresh one.
	token, generated, err := resolveToken(os.Args[1:])
	if err != nil {
		return exitConfig, err
	}

	// 3. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Assemble the session: filter, history client, websocket.
	filter, err := moderation.NewFilter(config.Words(), moderation.ParseMode(config.FilterMode), log)
	if err != nil {
		return exitConfig, fmt.Errorf("blocked words: %w", err)
	}
	hist := history.NewClient(config.BackendURL, config.HistoryTimeout, log)
	ws, err := transport.NewWebSocket(config.BackendURL, log)
	if err != nil {
		return exitRuntime, fmt.Errorf("backend url: %w", err)
	}

	engine, err := session.New(session.Config{
		Token:             token,
		Filter:            filter,
		SweepInterval:     config.SweepInterval,
		ReconnectMinDelay: config.ReconnectMinDelay,
		ReconnectMaxDelay: config.ReconnectMaxDelay,
		DefaultTTLSeconds: int(config.DefaultTTL),
	}, ws, hist, log)
	if err != nil {
		return exitConfig, err
	}

	ui := printer{colours: config.Colours, self: engine.AgentID()}
	if generated {
		ui.system(fmt.Sprintf("New room created. Share this token: %s", token))
	}
	ui.system(fmt.Sprintf("Joining room %s as %s (Ctrl+C to quit, /help for commands)", token, engine.AgentID()))

	// 5. Run the engine and consume its update stream.
	runErr := make(chan error, 1)
	go func() { runErr <- engine.Run(ctx) }()
	go consumeUpdates(engine, ui)

	// 6. Terminal input loop.
	lines := readLines(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			ui.system("Leaving room...")
			if err := <-runErr; err != nil {
				return exitRuntime, err
			}
			return exitOK, nil
		case err := <-runErr:
			if err != nil {
				return exitRuntime, err
			}
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				lines = nil
				stop()
				continue
			}
			handleLine(ctx, engine, ui, line)
		}
	}
}

// resolveToken canonicalizes an explicit token argument or generates
// a new room token when none is given.
func resolveToken(args []string) (domain.RoomToken, bool, error) {
	if len(args) > 0 {
		token, err := domain.CanonicalToken(args[0])
		if err != nil {
			return "", false, fmt.Errorf("room token: %w", err)
		}
		return token, false, nil
	}
	return domain.GenerateRoomToken(), true, nil
}

// readLines feeds stdin to the select loop. The channel closes on EOF.
func readLines(r *os.File) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

func handleLine(ctx context.Context, engine *session.Engine, ui printer, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	switch {
	case line == "/help":
		ui.system("/who  list participants | /image <path> [caption]  send a picture | /quit  leave")
	case line == "/quit":
		ui.system("Use Ctrl+C to leave the room.")
	case line == "/who":
		printParticipants(engine, ui)
	case strings.HasPrefix(line, "/image "):
		sendImage(ctx, engine, ui, strings.TrimSpace(strings.TrimPrefix(line, "/image ")))
	case strings.HasPrefix(line, "/"):
		ui.warn(fmt.Sprintf("Unknown command %q, try /help", line))
	default:
		sendText(ctx, engine, ui, line)
	}
}

func sendText(ctx context.Context, engine *session.Engine, ui printer, text string) {
	receipt, err := engine.Send(ctx, text, -1)
	if err != nil {
		ui.warn(err.Error())
		return
	}
	reportReceipt(ui, receipt)
}

// sendImage reads, validates and compresses a local file before
// handing it to the engine. The caption, if any, follows the path.
func sendImage(ctx context.Context, engine *session.Engine, ui printer, args string) {
	path, caption, _ := strings.Cut(args, " ")
	if path == "" {
		ui.warn("Usage: /image <path> [caption]")
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		ui.warn(fmt.Sprintf("Cannot read %s: %v", path, err))
		return
	}
	if err := imaging.Validate(data); err != nil {
		ui.warn(err.Error())
		return
	}
	encoded, err := imaging.NewJPEGCodec().Encode(ctx, data)
	if err != nil {
		ui.warn(fmt.Sprintf("Cannot process %s: %v", path, err))
		return
	}

	receipt, err := engine.SendImage(ctx, encoded, strings.TrimSpace(caption), -1)
	if err != nil {
		ui.warn(err.Error())
		return
	}
	ui.system(fmt.Sprintf("Sent %s (%dx%d, %d bytes)", path, encoded.Width, encoded.Height, encoded.ByteSize))
	reportReceipt(ui, receipt)
}

func reportReceipt(ui printer, receipt session.SendReceipt) {
	if receipt.Warning != "" {
		ui.warn(receipt.Warning)
	}
	if !receipt.Encrypted {
		ui.warn("Encryption unavailable, message sent in plaintext")
	}
}

func printParticipants(engine *session.Engine, ui printer) {
	state := engine.Snapshot()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Agent", ""})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, agent := range state.Participants {
		marker := ""
		if agent == ui.self {
			marker = "(you)"
		}
		table.Append([]string{string(agent), marker})
	}
	table.Render()
}

// consumeUpdates turns the engine's notification stream into terminal
// output. Snapshot stays the source of truth for anything stateful.
func consumeUpdates(engine *session.Engine, ui printer) {
	for update := range engine.Updates() {
		switch u := update.(type) {
		case session.MessageAdded:
			ui.message(u.Message)
		case session.MessageRemoved:
			ui.faded(fmt.Sprintf("A message expired (%s)", u.ID))
		case session.ParticipantsChanged:
			ui.system(fmt.Sprintf("%d agent(s) in the room", len(engine.Snapshot().Participants)))
		case session.StatusChanged:
			reportStatus(engine.Snapshot(), ui)
		}
	}
}

func reportStatus(state session.State, ui printer) {
	switch {
	case state.Phase == session.PhaseActive && state.Connected:
		ui.system("Connected")
	case state.Phase == session.PhaseReconnecting:
		ui.warn("Connection lost, retrying...")
	case state.CryptoUnavailable:
		ui.warn("Encryption unavailable for this session")
	case state.HistoryError != "":
		ui.warn(fmt.Sprintf("History unavailable: %s", state.HistoryError))
	}
}

// printer renders terminal output, optionally colorized.
type printer struct {
	colours bool
	self    domain.AgentID
}

func (p printer) message(msg domain.Message) {
	stamp := msg.Timestamp.Format(time.TimeOnly)
	body := msg.Body
	if msg.Kind == domain.KindImage {
		body = strings.TrimSpace("[image] " + msg.Body)
	}
	line := fmt.Sprintf("[%s] %s: %s", stamp, msg.Sender, body)
	if p.colours && msg.IsOwn(p.self) {
		line = color.New(color.FgGreen).Render(line)
	}
	fmt.Println(line)
}

func (p printer) system(text string) {
	if p.colours {
		text = color.New(color.FgCyan).Render(text)
	}
	fmt.Println(text)
}

func (p printer) warn(text string) {
	if p.colours {
		text = color.New(color.FgYellow).Render(text)
	}
	fmt.Println(text)
}

func (p printer) faded(text string) {
	if p.colours {
		text = color.New(color.FgDarkGray).Render(text)
	}
	fmt.Println(text)
}
