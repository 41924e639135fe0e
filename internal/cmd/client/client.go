// Package client parses chat client flags and composes the interactive
// session loop.
package client

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/louisbranch/polyglot.chat/internal/chat/domain"
	"github.com/louisbranch/polyglot.chat/internal/chat/history"
	"github.com/louisbranch/polyglot.chat/internal/chat/session"
	"github.com/louisbranch/polyglot.chat/internal/chat/storage"
	storesqlite "github.com/louisbranch/polyglot.chat/internal/chat/storage/sqlite"
	"github.com/louisbranch/polyglot.chat/internal/chat/transport"
	entrypoint "github.com/louisbranch/polyglot.chat/internal/platform/cmd"
	"github.com/louisbranch/polyglot.chat/internal/platform/i18n"
)

// Config holds client command configuration.
type Config struct {
	ServerURL string `env:"POLYGLOT_CHAT_SERVER_URL" envDefault:"http://localhost:5000"`
	Username  string `env:"POLYGLOT_CHAT_USERNAME"`
	Language  string `env:"POLYGLOT_CHAT_LANGUAGE"   envDefault:"en"`
	StatePath string `env:"POLYGLOT_CHAT_STATE_PATH" envDefault:"polyglot-chat.db"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.ServerURL, "server-url", cfg.ServerURL, "chat server base URL")
	fs.StringVar(&cfg.Username, "username", cfg.Username, "username for first sign-in")
	fs.StringVar(&cfg.Language, "language", cfg.Language, "preferred chat language code")
	fs.StringVar(&cfg.StatePath, "state-path", cfg.StatePath, "path to the local session database")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the chat session and starts the interactive loop.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceClient, func(ctx context.Context) error {
		return run(ctx, cfg, os.Stdin, os.Stdout)
	})
}

func run(ctx context.Context, cfg Config, in io.Reader, out io.Writer) error {
	api, err := history.New(history.Config{BaseURL: cfg.ServerURL})
	if err != nil {
		return fmt.Errorf("build api client: %w", err)
	}

	store, err := storesqlite.Open(cfg.StatePath)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer store.Close()

	sess, err := resolveSession(ctx, cfg, api, store)
	if err != nil {
		return err
	}

	conn, err := transport.New(transport.Config{ServerURL: cfg.ServerURL})
	if err != nil {
		return fmt.Errorf("build transport: %w", err)
	}

	facade, err := session.New(session.Config{
		Session:   sess,
		Transport: conn,
		History:   api,
		Reporter:  api,
		Store:     store,
	})
	if err != nil {
		return fmt.Errorf("build session: %w", err)
	}

	if err := facade.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "signed in as %s (%s); /help lists commands\n",
		sess.Username, i18n.DisplayName(sess.PreferredLanguage))

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			facade.Logout(context.Background())
			return nil
		case <-facade.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				facade.Logout(ctx)
				return nil
			}
			if quit := handleLine(ctx, facade, out, line); quit {
				facade.Logout(ctx)
				return nil
			}
		}
	}
}

// resolveSession restores the persisted identity, falling back to a fresh
// login when none is stored.
func resolveSession(ctx context.Context, cfg Config, api *history.Client, store storage.Store) (domain.Session, error) {
	record, err := store.GetSession(ctx)
	if err == nil {
		return domain.Session{
			UserID:            record.UserID,
			Username:          record.Username,
			PreferredLanguage: record.Language,
		}, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		log.Printf("client: restore session: %v", err)
	}

	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		return domain.Session{}, errors.New("username is required for first sign-in")
	}
	sess, err := api.Login(ctx, username, cfg.Language)
	if err != nil {
		return domain.Session{}, fmt.Errorf("sign in: %w", err)
	}

	putErr := store.PutSession(ctx, storage.SessionRecord{
		UserID:   sess.UserID,
		Username: sess.Username,
		Language: sess.PreferredLanguage,
	})
	if putErr != nil {
		log.Printf("client: persist session: %v", putErr)
	}
	return sess, nil
}

// handleLine executes one input line. Lines starting with / are commands;
// anything else is sent as a chat message. Returns true when the user quits.
func handleLine(ctx context.Context, facade *session.Facade, out io.Writer, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		if err := facade.SendMessage(line); err != nil {
			// Length and emptiness rejections stay silent by contract.
			if errors.Is(err, domain.ErrMessageEmpty) || errors.Is(err, domain.ErrMessageTooLong) {
				return false
			}
			fmt.Fprintf(out, "send failed: %v\n", err)
		}
		return false
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit":
		return true
	case "/help":
		printHelp(out)
	case "/rooms":
		current := facade.Room().ID
		for _, room := range domain.Rooms() {
			marker := " "
			if room.ID == current {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %-8s %s\n", marker, room.ID, room.Description)
		}
	case "/room":
		if len(fields) < 2 {
			fmt.Fprintln(out, "usage: /room <id>")
			return false
		}
		if err := facade.SwitchRoom(ctx, fields[1]); err != nil {
			fmt.Fprintf(out, "switch room failed: %v\n", err)
		}
	case "/langs":
		for _, lang := range i18n.Supported() {
			fmt.Fprintf(out, "%s\t%s\n", lang.Code, lang.Name)
		}
	case "/lang":
		if len(fields) < 2 {
			fmt.Fprintln(out, "usage: /lang <code>")
			return false
		}
		if err := facade.ChangeLanguage(ctx, fields[1]); err != nil {
			fmt.Fprintf(out, "change language failed: %v\n", err)
		}
	case "/report":
		if len(fields) < 2 {
			fmt.Fprintln(out, "usage: /report <message-id> [reason]")
			return false
		}
		reason := strings.Join(fields[2:], " ")
		if err := facade.ReportMessage(ctx, fields[1], reason); err != nil {
			fmt.Fprintf(out, "report failed: %v\n", err)
		}
	case "/translate":
		if len(fields) < 3 || (fields[2] != "on" && fields[2] != "off") {
			fmt.Fprintln(out, "usage: /translate <message-id> on|off")
			return false
		}
		if !facade.ShowTranslation(fields[1], fields[2] == "on") {
			fmt.Fprintln(out, "message has no translation for your language")
		}
	case "/reveal":
		if len(fields) < 2 {
			fmt.Fprintln(out, "usage: /reveal <message-id>")
			return false
		}
		if !facade.RevealMessage(fields[1]) {
			fmt.Fprintln(out, "no such message")
		}
	case "/typing":
		if len(fields) < 2 || (fields[1] != "on" && fields[1] != "off") {
			fmt.Fprintln(out, "usage: /typing on|off")
			return false
		}
		if err := facade.SetTyping(fields[1] == "on"); err != nil {
			fmt.Fprintf(out, "typing signal failed: %v\n", err)
		}
	case "/who":
		fmt.Fprintf(out, "%d online\n", facade.OnlineCount())
		if typing := facade.TypingUsers(); len(typing) > 0 {
			fmt.Fprintf(out, "typing: %s\n", strings.Join(typing, ", "))
		}
	case "/messages":
		printTimeline(facade, out)
	case "/notices":
		for _, notice := range facade.Notices() {
			fmt.Fprintf(out, "[%s] %s\n", notice.Kind, notice.Message)
		}
	default:
		fmt.Fprintf(out, "unknown command %s; /help lists commands\n", fields[0])
	}
	return false
}

func printTimeline(facade *session.Facade, out io.Writer) {
	if facade.Loading() {
		fmt.Fprintln(out, "loading messages...")
		return
	}
	for _, view := range facade.Messages() {
		if view.Hidden() {
			fmt.Fprintf(out, "%s  %s: [hidden by moderation; /reveal %s]\n",
				view.Message.Timestamp.Format("15:04"), view.Message.Username, view.Message.ID)
			continue
		}
		fmt.Fprintf(out, "%s  %s: %s\n",
			view.Message.Timestamp.Format("15:04"), view.Message.Username, facade.DisplayText(view))
	}
}

func printHelp(out io.Writer) {
	fmt.Fprint(out, `commands:
  /rooms                     list rooms
  /room <id>                 switch room
  /messages                  show the current room timeline
  /langs                     list languages
  /lang <code>               change preferred language
  /translate <id> on|off     toggle a message's translation
  /reveal <id>               unhide a moderated message
  /report <id> [reason]      report a message
  /typing on|off             signal composing state
  /who                       online count and who is typing
  /notices                   pending notices
  /quit                      sign out and exit
anything else is sent to the current room
`)
}
