// Command expensectl is a terminal front end for the expenses API.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"expenses-server/src/client"
	"expenses-server/src/client/querycache"
	"expenses-server/src/form"
	"expenses-server/src/middleware"
	"expenses-server/src/models"

	"golang.org/x/term"
)

const usage = `Usage: expensectl [-server <url>] [-token <token>] <command> [args]

Commands:
  list                 list your expenses, newest first
  total                show the total spent
  get <id>             show one expense
  delete <id>          delete one expense
  create [flags]       create an expense, prompting for missing fields
  token -user <id>     mint a bearer token (needs JWT_SECRET)

The server exposes expenses under <server>/api/expenses.`

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("expensectl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	server := fs.String("server", envOr("EXPENSES_SERVER", "http://localhost:8080"), "API base URL")
	token := fs.String("token", os.Getenv("EXPENSES_TOKEN"), "Bearer token")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stdout, usage)
		return fmt.Errorf("missing command")
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	if cmd == "token" {
		return runToken(rest, stdin, stdout, stderr)
	}

	ctx := context.Background()
	api := client.NewAPI(*server, *token, nil)

	switch cmd {
	case "list":
		expenses, err := api.ListExpenses(ctx)
		if err != nil {
			return fmt.Errorf("failed to list expenses: %w", err)
		}
		printExpenses(stdout, expenses)
		return nil
	case "total":
		total, err := api.TotalSpent(ctx)
		if err != nil {
			return fmt.Errorf("failed to get total spent: %w", err)
		}
		fmt.Fprintf(stdout, "Total spent: %s\n", total)
		return nil
	case "get", "delete":
		if len(rest) != 1 {
			return fmt.Errorf("usage: expensectl %s <id>", cmd)
		}
		id, err := strconv.ParseInt(rest[0], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid id %q", rest[0])
		}
		var e *models.Expense
		if cmd == "get" {
			e, err = api.GetExpense(ctx, id)
		} else {
			e, err = api.DeleteExpense(ctx, id)
		}
		if err != nil {
			return fmt.Errorf("failed to %s expense %d: %w", cmd, id, err)
		}
		if cmd == "delete" {
			fmt.Fprintf(stdout, "Deleted expense %d\n", e.ID)
		}
		printExpenses(stdout, []models.Expense{*e})
		return nil
	case "create":
		return runCreate(ctx, api, rest, stdin, stdout, stderr)
	default:
		fmt.Fprintln(stdout, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runCreate(ctx context.Context, api client.ExpenseAPI, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(stderr)
	title := fs.String("title", "", "Title (prompted if omitted)")
	amount := fs.String("amount", "", "Amount, e.g. 42.50 (prompted if omitted)")
	date := fs.String("date", "", "Date as YYYY-MM-DD (defaults to today)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	f := form.New(time.Now(), time.Local)
	provided := map[string]string{form.Title: *title, form.Amount: *amount, form.Date: *date}
	reader := bufio.NewReader(stdin)

	for _, field := range form.Fields {
		if v := provided[field]; v != "" {
			f.Change(field, v)
			continue
		}
		if field == form.Date && *title != "" && *amount != "" {
			// fully specified on the command line, keep today's date
			continue
		}
		if err := prompt(f, field, reader, stdout); err != nil {
			return err
		}
	}

	cache := querycache.New()
	out := &terminal{stdout: stdout, stderr: stderr}
	service := client.NewExpenses(api, cache, out, out)

	err := f.Submit(ctx, func(ctx context.Context, in models.ExpenseInput) error {
		_, err := service.Create(ctx, in)
		return err
	})
	if errors.Is(err, form.ErrInvalid) {
		for _, field := range form.Fields {
			for _, msg := range f.Errors(field) {
				fmt.Fprintf(stderr, "%s: %s\n", field, msg)
			}
		}
		return err
	}
	if err != nil {
		return err
	}

	if expenses, ok := querycache.Get[[]models.Expense](cache, querycache.AllExpenses); ok {
		printExpenses(stdout, expenses)
	}
	return nil
}

// prompt asks for field until it passes or input runs out. An empty answer keeps
// the current value.
func prompt(f *form.Form, field string, reader *bufio.Reader, stdout io.Writer) error {
	label := strings.ToUpper(field[:1]) + field[1:]
	for {
		if current := f.Value(field); current != "" && current != "0" {
			fmt.Fprintf(stdout, "%s [%s]: ", label, current)
		} else {
			fmt.Fprintf(stdout, "%s: ", label)
		}

		line, err := reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if line != "" {
			f.Change(field, line)
		} else {
			f.Blur(field)
		}

		msgs := f.Errors(field)
		if len(msgs) == 0 {
			return nil
		}
		fmt.Fprintf(stdout, "  %s\n", strings.Join(msgs, ", "))
		if err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("no valid %s given", field)
			}
			return err
		}
	}
}

func runToken(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(stderr)
	user := fs.String("user", "", "User id to put in the token subject")
	admin := fs.Bool("admin", false, "Grant super admin")
	ttl := fs.Duration("ttl", 24*time.Hour, "Token lifetime, 0 for no expiry")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		fmt.Fprintln(stdout, "Usage: expensectl token -user <id> [-admin] [-ttl 24h]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: user")
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprint(stdout, "JWT secret: ")
		var err error
		secret, err = readSecret(stdin)
		if err != nil {
			return fmt.Errorf("failed to read secret: %w", err)
		}
		fmt.Fprintln(stdout)
	}
	if strings.TrimSpace(secret) == "" {
		return fmt.Errorf("secret cannot be empty")
	}

	token, err := middleware.IssueToken(secret, *user, *admin, *ttl)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}
	fmt.Fprintln(stdout, token)
	return nil
}

func readSecret(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	// Fallback for non-terminal (e.g. tests, pipes)
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func printExpenses(w io.Writer, expenses []models.Expense) {
	if len(expenses) == 0 {
		fmt.Fprintln(w, "No expenses yet")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTITLE\tAMOUNT")
	for _, e := range expenses {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.ID, e.Date, e.Title, e.Amount)
	}
	tw.Flush()
}

// terminal stands in for the router and toasts of a graphical front end.
type terminal struct {
	stdout, stderr io.Writer
}

func (t *terminal) Navigate(to string) {
	fmt.Fprintf(t.stdout, "Opening %s\n", to)
}

func (t *terminal) Success(title, description string) {
	fmt.Fprintf(t.stdout, "%s: %s\n", title, description)
}

func (t *terminal) Error(title, description string) {
	fmt.Fprintf(t.stderr, "%s: %s\n", title, description)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
