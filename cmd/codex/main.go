// Command codex is a terminal-based agentic coding assistant: it mediates
// between a user, an OpenAI-compatible chat-completions endpoint, and a
// local repository, following the same option-wiring style as the
// reference cmd/oasis entry point this binary is descended from.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"

	codex "github.com/samooth/open-codex-sub001"
	"github.com/samooth/open-codex-sub001/internal/config"
	"github.com/samooth/open-codex-sub001/observer"
	"github.com/samooth/open-codex-sub001/provider/resolve"
	"github.com/samooth/open-codex-sub001/sandbox"
	"github.com/samooth/open-codex-sub001/store/sqlite"
	"github.com/samooth/open-codex-sub001/tools/fileops"
	"github.com/samooth/open-codex-sub001/tools/memory"
	"github.com/samooth/open-codex-sub001/tools/search"
)

// Exit codes, per the CLI's documented contract.
const (
	exitOK          = 0
	exitError       = 1
	exitBadArgs     = 2
	exitInterrupted = 130
)

// imageFlags collects repeated --image <path> flags.
type imageFlags []string

func (f *imageFlags) String() string { return strings.Join(*f, ",") }
func (f *imageFlags) Set(v string) error {
	*f = append(*f, v)
	return nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("codex", flag.ContinueOnError)
	prompt := fs.String("prompt", "", "seed the first user turn with this text instead of reading interactively")
	var images imageFlags
	fs.Var(&images, "image", "attach an image to the first user turn (repeatable)")
	approval := fs.String("approval", "", "suggest, auto-edit, or full-auto (overrides config)")
	model := fs.String("model", "", "model name (overrides config)")
	fullStdout := fs.Bool("full-stdout", false, "print full tool output instead of a truncated preview")
	dryRun := fs.Bool("dry-run", false, "deny every tool call that would prompt for approval; safelisted and policy-approved calls still run")
	singlePass := fs.Bool("single-pass", false, "run one completion non-interactively and exit")
	configPath := fs.String("config", "", "path to a TOML config file")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitBadArgs
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "codex: unexpected argument %q\n", fs.Arg(0))
		return exitBadArgs
	}

	cfg := config.Load(*configPath)
	if *approval != "" {
		cfg.Approval.Policy = *approval
	}
	if *model != "" {
		cfg.Provider.Model = *model
	}
	if cfg.Provider.APIKey == "" {
		fmt.Fprintln(os.Stderr, "codex: no API key configured (set OPENAI_API_KEY or provider.api_key in --config)")
		return exitBadArgs
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: levelFor(cfg.Debug),
	}))

	provider, err := resolve.Provider(resolve.Config{
		Provider: cfg.Provider.Name,
		APIKey:   cfg.Provider.APIKey,
		Model:    cfg.Provider.Model,
		BaseURL:  cfg.Provider.BaseURL,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "codex: %v\n", err)
		return exitBadArgs
	}

	sb, err := resolveSandbox(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "codex: %v\n", err)
		return exitError
	}

	workspace := cfg.Workspace.Path
	codexDir := filepath.Join(workspace, ".codex")
	rollout := sqlite.New(filepath.Join(codexDir, "sessions.db"), codexDir)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rollout.Init(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "codex: rollout store: %v\n", err)
		return exitError
	}
	defer rollout.Close()

	var tracer codex.Tracer
	var shutdownObserver func(context.Context) error
	if cfg.Observer.Enabled {
		inst, shutdown, err := observer.Init(ctx, nil)
		if err != nil {
			logger.Warn("observer init failed, continuing without tracing", "error", err)
		} else {
			tracer = observer.NewTracer()
			shutdownObserver = shutdown
			provider = observer.WrapProvider(provider, cfg.Provider.Model, inst)
		}
	}
	if shutdownObserver != nil {
		defer shutdownObserver(context.Background())
	}

	handler := &terminalApprovalHandler{in: bufio.NewReader(os.Stdin), out: os.Stdout, dryRun: *dryRun}

	asst := codex.New(
		codex.WithProvider(provider),
		codex.WithModel(cfg.Provider.Model),
		codex.WithWorkspace(workspace),
		codex.WithApprovalPolicy(cfg.ApprovalPolicy()),
		codex.WithApprovalHandler(handler),
		codex.WithSandbox(sb),
		codex.WithRollout(rollout),
		codex.WithTracer(tracer),
		codex.WithLogger(logger),
		codex.WithSystemPrompt(defaultSystemPrompt),
	)
	asst.AddTool(fileops.New(workspace))
	asst.AddTool(search.New(workspace, sb))
	asst.AddTool(memory.New(workspace))

	attachments := make([]codex.Attachment, 0, len(images))
	for _, path := range images {
		att, err := loadImage(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "codex: %v\n", err)
			return exitBadArgs
		}
		attachments = append(attachments, att)
	}

	printer := &outputPrinter{w: os.Stdout, full: *fullStdout}

	if *singlePass {
		if *prompt == "" {
			fmt.Fprintln(os.Stderr, "codex: --single-pass requires --prompt")
			return exitBadArgs
		}
		return runSinglePass(ctx, asst, *prompt, attachments, printer)
	}

	return runInteractive(ctx, asst, *prompt, attachments, printer)
}

func levelFor(debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

const defaultSystemPrompt = `You are a terminal-based coding assistant. You have tools to read, search, ` +
	`and edit files, run shell commands, and apply patches in the current workspace. Make focused, minimal ` +
	`changes and explain what you changed.`

func resolveSandbox(cfg config.Config) (sandbox.Sandbox, error) {
	switch cfg.Sandbox.Kind {
	case "", "none":
		return sandbox.None{}, nil
	case "seatbelt":
		return sandbox.Seatbelt{}, nil
	case "docker":
		if cfg.Sandbox.DockerImage == "" {
			return nil, fmt.Errorf("sandbox.kind=docker requires sandbox.docker_image")
		}
		d, err := sandbox.NewDocker(cfg.Sandbox.DockerImage)
		if err != nil {
			return nil, fmt.Errorf("docker sandbox: %w", err)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown sandbox kind %q", cfg.Sandbox.Kind)
	}
}

func runSinglePass(ctx context.Context, asst *codex.Assistant, prompt string, images []codex.Attachment, out *outputPrinter) int {
	msg, err := asst.Run(ctx, codex.AgentTask{Input: prompt, Images: images})
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return exitInterrupted
		}
		fmt.Fprintf(os.Stderr, "codex: %v\n", err)
		return exitError
	}
	out.PrintAssistant(msg)
	return exitOK
}

func runInteractive(ctx context.Context, asst *codex.Assistant, seed string, images []codex.Attachment, out *outputPrinter) int {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	// Only print the "> " prompt when stdin is an interactive terminal —
	// piped input (e.g. `echo "..." | codex`) shouldn't get prompt noise
	// mixed into its output.
	interactive := isatty.IsTerminal(os.Stdin.Fd())
	showPrompt := func() {
		if interactive {
			fmt.Fprint(os.Stdout, "> ")
		}
	}

	turn := func(input string, imgs []codex.Attachment) bool {
		msg, err := asst.Run(ctx, codex.AgentTask{Input: input, Images: imgs})
		if err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return false
			}
			fmt.Fprintf(os.Stderr, "codex: %v\n", err)
			return true
		}
		out.PrintAssistant(msg)
		return true
	}

	if seed != "" {
		if !turn(seed, images) {
			return exitInterrupted
		}
	}

	showPrompt()
	for scanner.Scan() {
		if ctx.Err() != nil {
			return exitInterrupted
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			showPrompt()
			continue
		}
		if line == "/exit" || line == "/quit" {
			break
		}
		if !turn(line, nil) {
			return exitInterrupted
		}
		showPrompt()
	}
	if ctx.Err() != nil {
		return exitInterrupted
	}
	return exitOK
}

func loadImage(path string) (codex.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return codex.Attachment{}, fmt.Errorf("reading image %q: %w", path, err)
	}
	mime := "image/png"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		mime = "image/jpeg"
	case ".gif":
		mime = "image/gif"
	case ".webp":
		mime = "image/webp"
	}
	return codex.Attachment{MimeType: mime, Base64: encodeBase64(data)}, nil
}
