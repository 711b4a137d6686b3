package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"landr/internal/client"
	"landr/internal/engine/autosave"
	"landr/internal/engine/fields"
	"landr/internal/engine/form"
	"landr/internal/pkg/logger"
	"landr/internal/platform/auth"
	"landr/internal/platform/config"
	"landr/internal/shell"
)

const usage = `usage: landrctl [-server url] [-token t] <command> [args]

commands:
  list [-status s] [-search q] [-page n] [-limit n]
  get <id>
  delete <id>
  publish|unpublish|archive <id>
  fields
  form <id>
  edit [-delay d] <id>
  webhooks list
  webhooks add -name n -url u [-events created,updated] [-secret s]
  webhooks toggle <id>
  webhooks logs [-webhook id] [-limit n]
  login <username>
  hash-password
`

type cli struct {
	api *client.Client
	out *tabwriter.Writer
}

func main() {
	server := flag.String("server", envOr("LANDR_SERVER", "http://localhost:8080"), "API base URL")
	token := flag.String("token", os.Getenv("LANDR_TOKEN"), "Bearer token")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	logger.Init(config.LoggingConfig{Level: "warn", Format: "text"})

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{
		api: client.New(*server, client.WithToken(*token)),
		out: tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0),
	}
	err := c.run(ctx, args[0], args[1:])
	c.out.Flush()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func (c *cli) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "list":
		return c.list(ctx, args)
	case "get":
		id, err := single(cmd, args)
		if err != nil {
			return err
		}
		p, err := c.api.GetPage(ctx, id)
		if err != nil {
			return err
		}
		return printJSON(p)
	case "delete":
		id, err := single(cmd, args)
		if err != nil {
			return err
		}
		if err := c.api.DeletePage(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "deleted %s\n", id)
		return nil
	case "publish", "unpublish", "archive":
		id, err := single(cmd, args)
		if err != nil {
			return err
		}
		p, err := c.api.Transition(ctx, id, cmd)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s\t%s\n", p.ID, p.Status)
		return nil
	case "fields":
		return c.fields(ctx)
	case "form":
		id, err := single(cmd, args)
		if err != nil {
			return err
		}
		return c.form(ctx, id)
	case "edit":
		return c.edit(ctx, args)
	case "webhooks":
		return c.webhooks(ctx, args)
	case "login":
		return c.login(ctx, args)
	case "hash-password":
		return hashPassword()
	}
	return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
}

func single(cmd string, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%s takes exactly one argument", cmd)
	}
	return args[0], nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	var opts client.ListOptions
	fs.StringVar(&opts.Status, "status", "", "draft, published or archived")
	fs.StringVar(&opts.Search, "search", "", "match business name, template id or SEO title")
	fs.IntVar(&opts.Page, "page", 1, "page number")
	fs.IntVar(&opts.Limit, "limit", 20, "page size")
	if err := fs.Parse(args); err != nil {
		return err
	}

	list, err := c.api.ListPages(ctx, opts)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, "ID\tTEMPLATE\tBUSINESS\tSTATUS\tUPDATED")
	for _, p := range list.Items {
		fmt.Fprintf(c.out, "%s\t%s\t%s\t%s\t%s\n",
			p.ID, p.TemplateID, p.BusinessName, p.Status, p.UpdatedAt.Local().Format(time.DateTime))
	}
	fmt.Fprintf(c.out, "\npage %d, %d of %d\n", list.Page, len(list.Items), list.Total)
	return nil
}

func (c *cli) fields(ctx context.Context) error {
	entries, err := c.api.Fields(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, "PATH\tTYPE\tLABEL\tREQUIRED")
	for _, e := range entries {
		req := ""
		if e.Definition.IsRequired() {
			req = "yes"
		}
		fmt.Fprintf(c.out, "%s\t%s\t%s\t%s\n", e.Path, e.Definition.Type, e.Definition.Label, req)
	}
	return nil
}

func (c *cli) form(ctx context.Context, id string) error {
	view, err := c.api.Form(ctx, id)
	if err != nil {
		return err
	}
	for _, w := range view.Widgets {
		if !w.Visible {
			continue
		}
		value := ""
		if w.Value != nil {
			b, _ := json.Marshal(w.Value)
			value = string(b)
		}
		marker := ""
		if w.Required {
			marker = "*"
		}
		fmt.Fprintf(c.out, "%s%s\t%s\t%s\t%s\n", w.Path, marker, w.Kind, value, strings.Join(w.Errors, "; "))
	}
	return nil
}

func (c *cli) edit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	delay := fs.Duration("delay", autosave.DefaultDelay, "idle time before changes are saved")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := single("edit", fs.Args())
	if err != nil {
		return err
	}

	registry, err := fields.LoadDefault()
	if err != nil {
		return err
	}
	page, err := c.api.GetPage(ctx, id)
	if err != nil {
		return err
	}
	doc, err := page.Document()
	if err != nil {
		return err
	}

	session := autosave.NewSession(autosave.Config{Delay: *delay}, shell.Editable(doc),
		func(ctx context.Context, doc map[string]any) error {
			_, err := c.api.UpdatePage(ctx, id, shell.Editable(doc))
			return err
		})
	session.OnSaved(func(map[string]any) {
		fmt.Fprintln(os.Stderr, "saved")
	})
	session.OnError(func(err error) {
		fmt.Fprintf(os.Stderr, "save failed: %v (edits kept, :dismiss to clear)\n", err)
	})

	fmt.Fprintf(os.Stderr, "editing %s (%s); path=value, :save, :quit\n", page.BusinessName, page.TemplateID)
	editor := shell.NewEditor(session, form.NewRenderer(registry), os.Stdout)
	return editor.Run(ctx, os.Stdin)
}

func (c *cli) webhooks(ctx context.Context, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}
	switch args[0] {
	case "list":
		hooks, err := c.api.ListWebhooks(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, "ID\tNAME\tURL\tEVENTS\tACTIVE")
		for _, h := range hooks {
			fmt.Fprintf(c.out, "%s\t%s\t%s\t%s\t%t\n", h.ID, h.Name, h.URL, strings.Join(h.Events, ","), h.IsActive)
		}
		return nil
	case "add":
		fs := flag.NewFlagSet("webhooks add", flag.ContinueOnError)
		var w client.NewWebhook
		events := fs.String("events", "created,updated", "comma-separated events")
		fs.StringVar(&w.Name, "name", "", "display name")
		fs.StringVar(&w.URL, "url", "", "receiver URL")
		fs.StringVar(&w.Secret, "secret", "", "HMAC signing secret")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		w.Events = strings.Split(*events, ",")
		created, err := c.api.CreateWebhook(ctx, w)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "created %s\n", created.ID)
		return nil
	case "toggle":
		id, err := single("webhooks toggle", args[1:])
		if err != nil {
			return err
		}
		h, err := c.api.ToggleWebhook(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s\tactive=%t\n", h.ID, h.IsActive)
		return nil
	case "logs":
		fs := flag.NewFlagSet("webhooks logs", flag.ContinueOnError)
		webhookID := fs.String("webhook", "", "only this webhook")
		limit := fs.Int("limit", 100, "maximum entries")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		logs, err := c.api.WebhookLogs(ctx, *webhookID, *limit)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, "SENT\tWEBHOOK\tEVENT\tTEMPLATE\tSTATUS\tCODE\tERROR")
		for _, l := range logs {
			fmt.Fprintf(c.out, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
				l.SentAt.Local().Format(time.DateTime), l.WebhookID, l.Event, l.TemplateID, l.Status, l.StatusCode, l.ErrorMessage)
		}
		return nil
	}
	return fmt.Errorf("unknown webhooks command %q", args[0])
}

func (c *cli) login(ctx context.Context, args []string) error {
	username, err := single("login", args)
	if err != nil {
		return err
	}
	password, err := readPassword()
	if err != nil {
		return err
	}
	token, err := c.api.Login(ctx, username, password)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func hashPassword() error {
	password, err := readPassword()
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

// readPassword prompts on a terminal without echo and falls back to one
// line of stdin when input is piped.
func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Password: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		return string(b), err
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		log.Debug().Err(err).Msg("no password on stdin")
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
