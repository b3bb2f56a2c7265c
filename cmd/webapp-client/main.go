// webapp-client — консольный клиент: логин, проверка и завершение сессии.
// Пока клиент запущен, таймер фоново продлевает сессию; токен сохраняется
// в файле и переживает перезапуск.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pribylovaa/go-webapp/internal/client"
)

func main() {
	var (
		addr      string
		statePath string
	)
	flag.StringVar(&addr, "addr", "http://localhost:8080/api/v1", "base API url")
	flag.StringVar(&statePath, "state", defaultStatePath(), "path to session state file")
	flag.Parse()

	c := client.New(addr)
	store := client.NewTokenStore(statePath)

	tm := client.NewSessionTimer(c, 0.8)
	defer tm.Stop()

	// Отозванная или истёкшая сессия не должна пережить рестарт клиента.
	tm.OnDrop(func() { _ = store.Clear() })

	// Восстановление сессии с прошлого запуска.
	if sess, ok, err := store.Load(); err == nil && ok {
		tm.Adopt(sess)
		fmt.Printf("restored session for user %s\n", sess.UserID)
	}

	fmt.Println("commands: register <user> <pass> | login <user> <pass> | whoami | status | logout | quit")

	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !sc.Scan() {
			return
		}

		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		runCommand(ctx, fields, c, tm, store)
		cancel()

		if fields[0] == "quit" {
			return
		}
	}
}

func runCommand(ctx context.Context, fields []string, c *client.Client, tm *client.SessionTimer, store *client.TokenStore) {
	switch fields[0] {
	case "register", "login":
		if len(fields) != 3 {
			fmt.Printf("usage: %s <user> <pass>\n", fields[0])
			return
		}

		call := c.Login
		if fields[0] == "register" {
			call = c.Register
		}

		sess, err := call(ctx, fields[1], fields[2])
		if err != nil {
			fmt.Println("error:", err)
			return
		}

		tm.Adopt(sess)
		if err := store.Save(sess); err != nil {
			fmt.Println("warn: failed to persist session:", err)
		}
		fmt.Printf("hello %s, session until %s\n", fields[1], time.Unix(sess.ExpiresAt, 0).Format(time.RFC3339))

	case "whoami":
		st := tm.Status()
		if st.State != client.StateActive {
			fmt.Println("not logged in")
			return
		}

		who, err := c.WhoAmI(ctx, st.Token)
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		fmt.Printf("user %s, session until %s\n", who.UserID, time.Unix(who.ExpiresAt, 0).Format(time.RFC3339))

	case "status":
		st := tm.Status()
		if st.State != client.StateActive {
			fmt.Println("anonymous")
			return
		}
		fmt.Printf("active: user %s, expires %s\n", st.UserID, st.ExpiresAt.Format(time.RFC3339))

	case "logout":
		if err := tm.Logout(ctx); err != nil {
			fmt.Println("warn:", err)
		}
		if err := store.Clear(); err != nil {
			fmt.Println("warn:", err)
		}
		fmt.Println("logged out")

	case "quit":

	default:
		fmt.Println("unknown command:", fields[0])
	}
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "webapp-session"
	}
	return filepath.Join(home, ".webapp", "session")
}
