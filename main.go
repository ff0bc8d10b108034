package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kir-gadjello/anygem/conversation"
	"github.com/kir-gadjello/anygem/identity"
	"github.com/kir-gadjello/anygem/store"
	"github.com/kir-gadjello/anygem/transport"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func is_interactive(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// isTerminal reports whether a command's stream is an interactive terminal.
// Buffers and pipes are not.
func isTerminal(stream interface{}) bool {
	f, ok := stream.(*os.File)
	return ok && is_interactive(f.Fd())
}

// app wires the local state, the backend client and the controller of one
// invocation.
type app struct {
	cfg    RunConfig
	kv     *store.KV
	client *transport.Client
	ctrl   *conversation.Controller
}

func newApp(cfg RunConfig) (*app, error) {
	kv, err := store.Open(cfg.StateDB)
	if err != nil {
		return nil, err
	}

	var clientOpts []transport.ClientOption
	if cfg.Verbose {
		clientOpts = append(clientOpts, transport.WithVerbose())
	}
	client := transport.NewClient(cfg.APIURL, clientOpts...)

	ctrl := conversation.NewController(identity.New(kv), client,
		conversation.WithOptions(cfg.Options),
		conversation.WithStager(conversation.NewStager(cfg.MaxAttachmentKB)),
		conversation.WithTimeout(cfg.Timeout),
	)
	if err := ctrl.SetMode(cfg.Mode); err != nil {
		kv.Close()
		return nil, err
	}

	return &app{cfg: cfg, kv: kv, client: client, ctrl: ctrl}, nil
}

func (a *app) Close() error {
	return a.kv.Close()
}

// setup resolves the configuration and opens the app. Logging stays off
// unless --verbose is given.
func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	rc, err := getRunConfig(cmd, cfg)
	if err != nil {
		return nil, err
	}

	if rc.Verbose {
		log.SetOutput(cmd.ErrOrStderr())
	} else {
		log.SetOutput(io.Discard)
	}
	log.Printf("[CLI] Setup completed api_url=%s state_db=%s timeout=%s mode=%s", rc.APIURL, rc.StateDB, rc.Timeout, rc.Mode)

	return newApp(rc)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "anygem",
		Short: "Terminal client for the anyGem assistant",
		Long: "Chat, search, write reports, build slide decks and draw with the anyGem backend.\n" +
			"Without arguments on a terminal it opens the interactive chat; otherwise it sends one message.",
		Args:          cobra.ArbitraryArgs,
		RunE:          runRoot,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	addOptionFlags(rootCmd)
	addSendFlags(rootCmd)

	sendCmd := &cobra.Command{
		Use:   "send [message]",
		Short: "Send one message and print the reply",
		Long:  "Send one message in the current session. Reads stdin when no message is given and stdin is piped.",
		RunE:  runSend,
	}
	addSendFlags(sendCmd)
	rootCmd.AddCommand(sendCmd)

	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "List saved sessions of the current identity",
		Args:  cobra.NoArgs,
		RunE:  runSessions,
	}
	sessionsCmd.Flags().Bool("json", false, "Print the list as json")
	rootCmd.AddCommand(sessionsCmd)

	loadCmd := &cobra.Command{
		Use:   "load [session-id]",
		Short: "Switch to a saved session and print its transcript",
		Args:  cobra.ExactArgs(1),
		RunE:  runLoad,
	}
	rootCmd.AddCommand(loadCmd)

	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Start a new conversation with a fresh identity",
		Args:  cobra.NoArgs,
		RunE:  runNew,
	}
	newCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(newCmd)

	doctorCmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check local state and configuration",
		Args:  cobra.NoArgs,
		RunE:  runDoctor,
	}
	rootCmd.AddCommand(doctorCmd)

	return rootCmd
}

func addSendFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("file", "f", "", "Attach a file (image, pdf, text, ...)")
	cmd.Flags().StringP("image-out", "o", "", "Write a generated image to this path")
}

func runRoot(cmd *cobra.Command, args []string) error {
	if len(args) > 0 || !isTerminal(cmd.InOrStdin()) || !isTerminal(cmd.OutOrStdout()) {
		return runSend(cmd, args)
	}
	return runTUI(cmd)
}

func readMessage(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	in := cmd.InOrStdin()
	if isTerminal(in) {
		return "", nil
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func runSend(cmd *cobra.Command, args []string) error {
	text, err := readMessage(cmd, args)
	if err != nil {
		return err
	}

	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	a.ctrl.Open()
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		if _, err := a.ctrl.StageFile(path); err != nil {
			return err
		}
	}
	a.ctrl.SetInput(text)

	if err := a.ctrl.Send(ctx); err != nil {
		if errors.Is(err, conversation.ErrNothingToSend) {
			return fmt.Errorf("nothing to send: pass a message, pipe one on stdin or attach a file with -f")
		}
		return err
	}

	msgs := a.ctrl.Messages()
	last := msgs[len(msgs)-1]
	if last.Role == conversation.RoleSystem {
		return errors.New(last.Text)
	}
	return printReply(cmd, a.cfg, last)
}

func printReply(cmd *cobra.Command, cfg RunConfig, msg conversation.Message) error {
	out := cmd.OutOrStdout()
	tty := isTerminal(out)

	if tty && cfg.RenderMarkdown {
		fmt.Fprintln(out, strings.TrimRight(renderMarkdown(messageBody(msg), terminalWidth(out.(*os.File)), 0), " \t\r\n"))
	} else {
		fmt.Fprintln(out, messageBody(msg))
	}

	if msg.Meta == nil || msg.Meta.Image == "" {
		return nil
	}
	if path, _ := cmd.Flags().GetString("image-out"); path != "" {
		if err := saveReplyImage(path, msg.Meta.Image); err != nil {
			return fmt.Errorf("failed to save image: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Image saved to %s\n", path)
	}
	if tty && detectTerminalImageSupport() {
		if err := displayImageInTerminal(out, msg.Meta.Mime, msg.Meta.Image, defaultImageRows); err != nil {
			log.Printf("[CLI] Image display failed: err=%v", err)
		}
	}
	return nil
}

func runSessions(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	a.ctrl.Startup(cmd.Context())
	sessions := a.ctrl.Sessions()
	out := cmd.OutOrStdout()

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if sessions == nil {
			sessions = []conversation.Session{}
		}
		return enc.Encode(sessions)
	}

	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions found.")
		return nil
	}
	for _, s := range sessions {
		marker := " "
		if s.ID == a.ctrl.Identity() {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %s  %s  %s\n", marker, s.ID, formatUpdatedAt(s.UpdatedAt), s.Title)
		if s.Preview != "" {
			fmt.Fprintf(out, "    %s\n", s.Preview)
		}
	}
	return nil
}

func formatUpdatedAt(ms int64) string {
	if ms <= 0 {
		return "                "
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}

func runLoad(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	id := args[0]
	a.ctrl.Open()
	a.ctrl.Select(id)
	// Reloading the active session is allowed here, unlike in the chat view
	a.ctrl.ApplySessionLog(id, a.client.LoadSession(cmd.Context(), id))

	out := cmd.OutOrStdout()
	msgs := a.ctrl.Messages()
	if len(msgs) == 0 {
		fmt.Fprintf(out, "Session %s is empty or could not be loaded.\n", id)
		return nil
	}

	render := isTerminal(out) && a.cfg.RenderMarkdown
	width := 80
	if render {
		width = terminalWidth(out.(*os.File))
	}
	fmt.Fprint(out, formatMessageLog(msgs, render, width, 0, "", render))
	return nil
}

func runNew(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	old := a.ctrl.Open()

	yes, _ := cmd.Flags().GetBool("yes")
	if !yes && isTerminal(cmd.InOrStdin()) {
		fmt.Fprintf(cmd.OutOrStdout(), "Leave session %s and start a new one? [y/N] ", old)
		key, err := readSingleKey()
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if key != 'y' && key != 'Y' {
			return nil
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), a.ctrl.Reset())
	return nil
}

func runDoctor(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "anyGem Doctor")
	fmt.Fprintln(out, "=============")

	if store.Check() {
		fmt.Fprintln(out, "✅ SQLite        : Available")
	} else {
		fmt.Fprintln(out, "❌ SQLite        : Unavailable")
		fmt.Fprintln(out, "   -> FIX: Build with CGO_ENABLED=1")
	}

	cfg, err := loadConfig()
	path := configPath()
	switch {
	case err != nil:
		fmt.Fprintf(out, "❌ Configuration : %v\n", err)
		cfg = &ConfigFile{}
	case fileExists(path):
		fmt.Fprintf(out, "✅ Configuration : Found (%s)\n", path)
	default:
		fmt.Fprintf(out, "⚠️  Configuration : Missing (%s)\n", path)
	}

	rc, err := getRunConfig(cmd, cfg)
	if err != nil {
		fmt.Fprintf(out, "❌ Settings      : %v\n", err)
		return nil
	}
	if rc.APIURL != "" {
		fmt.Fprintf(out, "✅ api_url       : %s\n", rc.APIURL)
	} else {
		fmt.Fprintln(out, "⚠️  api_url       : Not set (config.yaml or ANYGEM_API_URL)")
	}

	kv, err := store.Open(rc.StateDB)
	if err != nil {
		fmt.Fprintf(out, "❌ State         : %v\n", err)
		return nil
	}
	defer kv.Close()
	if id, ok, err := kv.Get(identity.Key); err == nil && ok {
		fmt.Fprintf(out, "✅ State         : %s (identity %s)\n", rc.StateDB, id)
	} else {
		fmt.Fprintf(out, "✅ State         : %s (no identity yet)\n", rc.StateDB)
	}
	return nil
}

func readSingleKey() (rune, error) {
	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return 0, err
	}
	defer term.Restore(int(os.Stdin.Fd()), oldState)

	b := make([]byte, 1)
	if _, err := os.Stdin.Read(b); err != nil {
		return 0, err
	}
	return rune(b[0]), nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(filepath.Clean(path))
	return err == nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
