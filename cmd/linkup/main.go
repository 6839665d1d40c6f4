// Command linkup is a terminal client for the Linkup chat server. It logs
// in over REST, opens the live WebSocket channel, and drives a line-based
// conversation loop: pick a contact, type, send.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/linkup/chat-app/internal/client"
	"github.com/linkup/chat-app/internal/session"
	"github.com/linkup/chat-app/internal/transport"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "Linkup server base URL")
	identifier := flag.String("login", "", "email, phone, or connection code to log in with")
	register := flag.String("register", "", "register a new account: username,email,phone")
	flag.Parse()

	api := client.New(*serverURL)
	ctx := context.Background()

	var user *client.User
	var err error
	switch {
	case *register != "":
		parts := strings.SplitN(*register, ",", 3)
		if len(parts) != 3 {
			log.Fatal("register expects username,email,phone")
		}
		user, err = api.Register(ctx, parts[0], parts[1], parts[2])
		if err != nil {
			log.Fatalf("register failed: %v", err)
		}
		fmt.Printf("registered %s, your connection code is %s\n", user.Username, user.ConnectionCode)
		user, err = api.Login(ctx, user.ConnectionCode)
	case *identifier != "":
		user, err = api.Login(ctx, *identifier)
	default:
		log.Fatal("pass -login <identifier> or -register <username,email,phone>")
	}
	if err != nil {
		log.Fatalf("login failed: %v", err)
	}
	fmt.Printf("logged in as %s (%s)\n", user.Username, user.ConnectionCode)

	wsURL := "ws" + strings.TrimPrefix(*serverURL, "http") + "/ws?token=" + user.Token
	channel := transport.NewChannel(wsURL)
	view := newTerminalView(user.ConnectionCode)

	manager := session.NewManager(session.Config{
		View:      view,
		Transport: channel,
		Directory: client.NewDirectory(api),
		History:   client.NewHistoryLoader(api),
	})
	if err := manager.Initialize(ctx, *user); err != nil {
		log.Fatalf("session start failed: %v", err)
	}
	defer manager.Close()

	fmt.Println("commands: /contacts, /add CODE, /open CODE, /quit")
	repl(ctx, manager, view)
}

// repl reads commands and message lines until EOF or /quit.
func repl(ctx context.Context, manager *session.Manager, view *terminalView) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit":
			return
		case line == "/contacts":
			view.printContacts()
		case strings.HasPrefix(line, "/add "):
			code := strings.TrimSpace(strings.TrimPrefix(line, "/add "))
			if err := manager.AddContact(ctx, code); err != nil {
				fmt.Printf("! %v\n", err)
				continue
			}
			fmt.Println("contact added")
		case strings.HasPrefix(line, "/open "):
			code := strings.TrimSpace(strings.TrimPrefix(line, "/open "))
			if err := manager.SelectContact(ctx, code); err != nil {
				fmt.Printf("! %v\n", err)
			}
		case strings.HasPrefix(line, "/"):
			fmt.Printf("! unknown command %q\n", line)
		default:
			manager.Keystroke()
			if err := manager.SendMessage(line); err != nil {
				fmt.Printf("! %v\n", err)
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Terminal view
// ---------------------------------------------------------------------------

// terminalView projects session state onto stdout. The session manager
// serializes all calls, so the only locking needed is against the REPL's
// printContacts.
type terminalView struct {
	selfCode string

	mu       sync.Mutex
	contacts []client.Contact
	names    map[string]string
	active   string
}

func newTerminalView(selfCode string) *terminalView {
	return &terminalView{selfCode: selfCode, names: make(map[string]string)}
}

func (v *terminalView) displayName(code string) string {
	if code == v.selfCode {
		return "you"
	}
	if name, ok := v.names[code]; ok {
		return name
	}
	return code
}

func (v *terminalView) RenderContacts(contacts []client.Contact) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.contacts = contacts
	for _, c := range contacts {
		v.names[c.ContactCode] = c.ContactName
	}
}

func (v *terminalView) RenderHistory(contact client.Contact, messages []client.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.active = contact.ContactCode
	fmt.Printf("--- %s (%s) ---\n", contact.ContactName, contact.ContactCode)
	for _, m := range messages {
		fmt.Printf("[%s] %s: %s\n", m.Timestamp, v.displayName(m.Sender), m.Content)
	}
}

func (v *terminalView) AppendMessage(msg client.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Printf("[%s] %s: %s\n", msg.Timestamp, v.displayName(msg.Sender), msg.Content)
}

func (v *terminalView) ShowTyping() {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Printf("%s is typing...\n", v.displayName(v.active))
}

func (v *terminalView) HideTyping() {}

func (v *terminalView) SetComposerEnabled(enabled bool) {}

func (v *terminalView) SetContactStatus(code, status string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, known := v.names[code]; known {
		fmt.Printf("* %s is %s\n", v.displayName(code), status)
	}
}

func (v *terminalView) printContacts() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.contacts) == 0 {
		fmt.Println("no contacts yet; use /add CODE")
		return
	}
	for _, c := range v.contacts {
		fmt.Printf("  %s  %s\n", c.ContactCode, c.ContactName)
	}
}
