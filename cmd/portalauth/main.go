// Command portalauth signs in to a college portal and keeps the session in a
// local token store between runs.
//
//	portalauth login -email asha@college.edu
//	portalauth whoami
//	portalauth refresh
//	portalauth logout
//	portalauth status
//
// Settings come from PORTAL_* variables, optionally loaded from .env.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	portalAuth "github.com/MrEthical07/portalAuth"
	"github.com/MrEthical07/portalAuth/notify"
	"github.com/MrEthical07/portalAuth/session"
)

const commandTimeout = 30 * time.Second

func main() {
	// A missing .env is fine.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	cfg := cliConfig()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	engine, err := portalAuth.New().
		WithConfig(cfg).
		WithNotifier(notify.Func(printNotice)).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	var code int
	switch cmd {
	case "login":
		code = runLogin(ctx, engine, args)
	case "whoami":
		code = runWhoami(ctx, engine)
	case "refresh":
		code = runRefresh(ctx, engine)
	case "logout":
		code = runLogout(ctx, engine)
	case "status":
		code = runStatus(ctx, engine)
	default:
		usage()
		code = 2
	}
	// os.Exit skips defers.
	engine.Close()
	cancel()
	os.Exit(code)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: portalauth <login|whoami|refresh|logout|status> [flags]")
}

// cliConfig reads PORTAL_* settings and switches the default in-memory store
// to a file under the user config directory so sessions survive runs.
func cliConfig() portalAuth.Config {
	cfg := portalAuth.ConfigFromEnv("PORTAL")
	if cfg.Transport.Platform == "" {
		cfg.Transport.Platform = "cli"
	}
	if cfg.Storage.Backend == portalAuth.StorageMemory {
		cfg.Storage.Backend = portalAuth.StorageFile
		cfg.Storage.PersistCookies = true
	}
	if cfg.Storage.Backend == portalAuth.StorageFile && cfg.Storage.FilePath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = "."
		}
		cfg.Storage.FilePath = filepath.Join(dir, "portalauth", "session.json")
	}
	return cfg
}

func printNotice(_ context.Context, m notify.Message) {
	fmt.Fprintf(os.Stderr, "[%s] %s: %s\n", m.Kind, m.Title, m.Message)
}

func runLogin(ctx context.Context, e *portalAuth.Engine, args []string) int {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", os.Getenv("PORTAL_EMAIL"), "account email")
	password := fs.String("password", "", "account password (prompted when empty; PORTAL_PASSWORD is also read)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *password == "" {
		*password = os.Getenv("PORTAL_PASSWORD")
	}
	if *email == "" {
		*email = prompt("Email: ")
	}
	if *password == "" {
		*password = prompt("Password: ")
	}

	e.Start(ctx)
	user, err := e.Login(ctx, *email, *password)
	if err != nil {
		var authErr *portalAuth.AuthError
		if errors.As(err, &authErr) {
			fmt.Fprintf(os.Stderr, "%s: %s\n", authErr.Title, authErr.Message)
		} else {
			fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
		}
		return 1
	}
	fmt.Printf("signed in as %s (%s)\n", user.FullName, user.Role)
	return 0
}

func runWhoami(ctx context.Context, e *portalAuth.Engine) int {
	snap := e.Start(ctx)
	if !snap.IsAuthenticated {
		fmt.Fprintln(os.Stderr, "not signed in")
		return 1
	}
	printUser(snap.User)
	return 0
}

func runRefresh(ctx context.Context, e *portalAuth.Engine) int {
	if !e.Start(ctx).IsAuthenticated {
		fmt.Fprintln(os.Stderr, "not signed in")
		return 1
	}
	if !e.RefreshToken(ctx) {
		fmt.Fprintln(os.Stderr, "refresh declined or failed")
		return 1
	}
	fmt.Println("tokens refreshed")
	return 0
}

func runLogout(ctx context.Context, e *portalAuth.Engine) int {
	e.Start(ctx)
	_ = e.Logout(ctx)
	fmt.Println("signed out")
	return 0
}

func runStatus(ctx context.Context, e *portalAuth.Engine) int {
	cached := e.HasCachedSession(ctx)
	snap := e.Start(ctx)
	fmt.Printf("base url:       %s\n", e.Client().BaseURL())
	fmt.Printf("cached session: %t\n", cached)
	fmt.Printf("state:          %s\n", snap.State)
	fmt.Printf("device id:      %s\n", snap.DeviceID)
	if snap.User != nil {
		fmt.Printf("user:           %s <%s>\n", snap.User.FullName, snap.User.Email)
	}
	return 0
}

func printUser(u *session.UserProfile) {
	fmt.Printf("id:         %s\n", u.ID)
	fmt.Printf("name:       %s\n", u.FullName)
	fmt.Printf("email:      %s\n", u.Email)
	fmt.Printf("role:       %s\n", u.Role)
	if u.Department != "" {
		fmt.Printf("department: %s\n", u.Department)
	}
	if u.RollNumber != "" {
		fmt.Printf("roll no:    %s\n", u.RollNumber)
	}
	if u.FacultyID != "" {
		fmt.Printf("faculty id: %s\n", u.FacultyID)
	}
}

func prompt(label string) string {
	fmt.Fprint(os.Stderr, label)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(line)
}
