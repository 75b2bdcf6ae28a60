package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prn-tf/pantry/internal/config"
	"github.com/prn-tf/pantry/internal/domain"
	"github.com/prn-tf/pantry/internal/logging"
	"github.com/prn-tf/pantry/internal/repository"
	"github.com/prn-tf/pantry/internal/repository/store"
	"github.com/prn-tf/pantry/internal/service"
)

// passwordEnv supplies the superuser password when --password is omitted.
const passwordEnv = "PANTRY_SUPERUSER_PASSWORD"

// app holds the services an admin command works with.
type app struct {
	users *service.UserService
	repos *repository.Repositories
}

func openApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	repos, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	users := service.NewUserService(repos.Users, repos.Tokens, service.UserServiceConfig{
		BcryptCost:        cfg.Auth.BcryptCost,
		MinPasswordLength: cfg.Auth.MinPasswordLength,
	}, nil, logger)

	return &app{users: users, repos: repos}, nil
}

func (a *app) Close() {
	_ = a.repos.Close()
}

func createSuperuser(ctx context.Context, args []string) error {
	flags, configPath := newFlagSet("createsuperuser")
	email := flags.String("email", "", "email address of the superuser")
	password := flags.String("password", "", "password (defaults to $"+passwordEnv+")")
	name := flags.String("name", "", "display name")
	_ = flags.Parse(args)

	if *password == "" {
		*password = os.Getenv(passwordEnv)
	}

	a, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.users.CreateSuperuser(ctx, domain.UserInput{
		Email:    email,
		Password: password,
		Name:     name,
	})
	if err != nil {
		return describe(err)
	}

	fmt.Printf("Superuser created: id=%d email=%s\n", user.ID, user.Email)
	return nil
}

func userCommand(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("user: expected a subcommand (list, activate, deactivate)")
	}

	switch args[0] {
	case "list":
		return listUsers(ctx, args[1:])
	case "activate":
		return setUserActive(ctx, "activate", args[1:], true)
	case "deactivate":
		return setUserActive(ctx, "deactivate", args[1:], false)
	default:
		return fmt.Errorf("user: unknown subcommand %q", args[0])
	}
}

func listUsers(ctx context.Context, args []string) error {
	flags, configPath := newFlagSet("user list")
	offset := flags.Int("offset", 0, "number of users to skip")
	limit := flags.Int("limit", repository.DefaultListLimit, "maximum number of users to show")
	_ = flags.Parse(args)

	a, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.users.List(ctx, repository.ListOptions{Offset: *offset, Limit: *limit})
	if err != nil {
		return err
	}

	return printUsers(os.Stdout, result)
}

func printUsers(out io.Writer, result *repository.ListResult[domain.User]) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tACTIVE\tSTAFF\tCREATED")
	for _, u := range result.Items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%t\t%s\n",
			u.ID, u.Email, u.Name, u.IsActive, u.IsStaff, u.CreatedAt.UTC().Format(time.RFC3339))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "%d of %d users\n", len(result.Items), result.Total)
	return err
}

func setUserActive(ctx context.Context, name string, args []string, active bool) error {
	flags, configPath := newFlagSet("user " + name)
	id := flags.Int64("id", 0, "user ID")
	email := flags.String("email", "", "user email")
	_ = flags.Parse(args)

	a, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.lookup(ctx, *id, *email)
	if err != nil {
		return err
	}

	if err := a.users.SetActive(ctx, user.ID, active); err != nil {
		return err
	}

	fmt.Printf("User %d (%s) %sd\n", user.ID, user.Email, name)
	return nil
}

func tokenCommand(ctx context.Context, args []string) error {
	if len(args) < 1 || args[0] != "issue" {
		return errors.New("token: expected the issue subcommand")
	}

	flags, configPath := newFlagSet("token issue")
	id := flags.Int64("id", 0, "user ID")
	email := flags.String("email", "", "user email")
	_ = flags.Parse(args[1:])

	a, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.lookup(ctx, *id, *email)
	if err != nil {
		return err
	}
	if !user.CanAuthenticate() {
		return fmt.Errorf("user %d is inactive", user.ID)
	}

	token, err := a.users.IssueTokenFor(ctx, user)
	if err != nil {
		return err
	}

	// The plain token is shown once; only its hash is stored.
	fmt.Println(token.Key)
	return nil
}

// lookup finds a user by ID or, when id is zero, by email.
func (a *app) lookup(ctx context.Context, id int64, email string) (*domain.User, error) {
	switch {
	case id > 0:
		return a.users.GetByID(ctx, id)
	case email != "":
		return a.users.GetByEmail(ctx, email)
	default:
		return nil, errors.New("either --id or --email is required")
	}
}

// describe flattens validation messages into a single readable error.
func describe(err error) error {
	verr, ok := domain.AsValidationError(err)
	if !ok {
		return err
	}

	fields := make([]string, 0, len(verr.Fields))
	for field := range verr.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	lines := make([]string, 0, len(fields))
	for _, field := range fields {
		lines = append(lines, fmt.Sprintf("  %s: %s", field, strings.Join(verr.Fields[field], " ")))
	}
	return fmt.Errorf("invalid input:\n%s", strings.Join(lines, "\n"))
}
