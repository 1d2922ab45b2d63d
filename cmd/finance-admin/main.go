// Command finance-admin manages the rows the API cannot create itself:
// categories, users and development tokens.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"finance/internal/auth"
	"finance/internal/backend"
	"finance/internal/cli"
	"finance/internal/core"
	applog "finance/internal/log"
	"finance/internal/ports"
)

const usage = `usage: finance-admin <command> [flags]

commands:
  category add <name>
  user create -name NAME -email EMAIL -password PASSWORD
  user delete <id>
  token -user ID [-ttl 24h]
`

var errUsage = errors.New("invalid usage")

type adminStore interface {
	ports.CategoryWriter
	ports.UserReader
	ports.UserWriter
}

type admin struct {
	store  adminStore
	tokens *auth.Tokens
	out    io.Writer
}

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentAdmin)
	ctx := context.Background()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	if backendCfg.Type == backend.MemoryBackend {
		logger.Warn("Memory backend selected, changes are lost when the command exits")
	}
	backendCfg.AMQPURL = ""

	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err)
		os.Exit(1)
	}

	a := &admin{
		store:  result.Store,
		tokens: auth.NewTokens(cfg.JWTSecret, auth.DefaultIssuer),
		out:    os.Stdout,
	}
	err = a.run(ctx, os.Args[1:])
	if cerr := result.Cleanup(); cerr != nil {
		logger.Error("Backend cleanup failed", "error", cerr)
	}
	if errors.Is(err, errUsage) {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func (a *admin) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "category":
		if len(args) != 3 || args[1] != "add" {
			return errUsage
		}
		return a.addCategory(ctx, args[2])
	case "user":
		if len(args) < 2 {
			return errUsage
		}
		switch args[1] {
		case "create":
			return a.createUser(ctx, args[2:])
		case "delete":
			if len(args) != 3 {
				return errUsage
			}
			return a.deleteUser(ctx, args[2])
		}
		return errUsage
	case "token":
		return a.token(ctx, args[1:])
	default:
		return errUsage
	}
}

func (a *admin) addCategory(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: category name is empty", errUsage)
	}
	c, err := a.store.CreateCategory(ctx, name)
	if err != nil {
		return fmt.Errorf("add category %q: %w", name, err)
	}
	fmt.Fprintf(a.out, "category %d %s\n", c.ID, c.Name)
	return nil
}

func (a *admin) createUser(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("user create", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "unique email")
	password := fs.String("password", "", "plain password, stored as a bcrypt hash")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if *name == "" || *email == "" || *password == "" {
		return fmt.Errorf("%w: -name, -email and -password are required", errUsage)
	}

	hash, err := auth.HashPassword(*password)
	if err != nil {
		return err
	}
	u := core.User{ID: uuid.NewString(), Name: *name, Email: *email, Password: hash}
	if err := a.store.CreateUser(ctx, u); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	fmt.Fprintf(a.out, "user %s\n", u.ID)
	return nil
}

func (a *admin) deleteUser(ctx context.Context, id string) error {
	if err := a.store.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	fmt.Fprintf(a.out, "deleted %s\n", id)
	return nil
}

func (a *admin) token(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	userID := fs.String("user", "", "user id (token subject)")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if *userID == "" || *ttl <= 0 {
		return fmt.Errorf("%w: -user and a positive -ttl are required", errUsage)
	}

	u, err := a.store.FindUser(ctx, *userID)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("user %s does not exist", *userID)
	}

	signed, err := a.tokens.Sign(u.ID, *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, signed)
	return nil
}
