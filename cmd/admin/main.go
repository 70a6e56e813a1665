package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"github.com/GakeBruh/kakarikostore.ui/core"
)

type options struct {
	configPath     string
	apiURL         string
	sessionBackend string
	sessionFile    string
	search         string
	yes            bool
	inactive       bool

	password        string
	confirmPassword string
	name            string
	lastname        string
	email           string

	description string
	typeID      int64
	cost        string
	discount    string
	costSet     bool
	discountSet bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", core.UserMessage(err, err.Error()))
		os.Exit(1)
	}
}

func run() error {
	var opts options
	flagSet := pflag.NewFlagSet("admin", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "YAML config file overlaying the environment")
	flagSet.StringVar(&opts.apiURL, "api-url", "", "base URL of the catalog API")
	flagSet.StringVar(&opts.sessionBackend, "session-backend", "", "where the session is kept: file, redis or memory")
	flagSet.StringVar(&opts.sessionFile, "session-file", "", "sealed session file for the file backend")
	flagSet.StringVar(&opts.search, "search", "", "filter list output by name/description")
	flagSet.BoolVarP(&opts.yes, "yes", "y", false, "skip the delete confirmation prompt")
	flagSet.BoolVar(&opts.inactive, "inactive", false, "save the record as inactive")
	flagSet.StringVar(&opts.password, "password", "", "password (read from stdin when empty)")
	flagSet.StringVar(&opts.confirmPassword, "confirm-password", "", "password confirmation for register")
	flagSet.StringVar(&opts.name, "name", "", "first name (register) or catalog name")
	flagSet.StringVar(&opts.lastname, "lastname", "", "last name for register")
	flagSet.StringVar(&opts.email, "email", "", "email for login/register")
	flagSet.StringVar(&opts.description, "description", "", "catalog description")
	flagSet.Int64Var(&opts.typeID, "type-id", 0, "catalog type id of a catalog")
	flagSet.StringVar(&opts.cost, "cost", "", "catalog cost")
	flagSet.StringVar(&opts.discount, "discount", "", "catalog discount percent (0-100)")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	opts.costSet = flagSet.Changed("cost")
	opts.discountSet = flagSet.Changed("discount")
	if help, _ := flagSet.GetBool("help"); help || flagSet.NArg() == 0 {
		printHelp(flagSet)
		return nil
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logCloser, err := core.SetupLogging(cfg, "admin.log")
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer a.close()

	args := flagSet.Args()
	switch strings.ToLower(args[0]) {
	case "login":
		return a.login(ctx)
	case "register":
		return a.register(ctx)
	case "logout":
		return a.auth.Logout(ctx)
	case "whoami":
		sess, ok := a.auth.Get()
		if !ok {
			return core.ErrNoSession
		}
		printJSON(sess)
		return nil
	case "validate":
		return a.validate(ctx)
	case "status":
		return a.status(ctx)
	case "watch":
		return a.watch(ctx)
	case "types":
		return a.types(ctx, args[1:])
	case "catalogs":
		return a.catalogs(ctx, args[1:])
	default:
		printHelp(flagSet)
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func loadConfig(opts options) (core.Config, error) {
	cfg := core.Load()
	if opts.configPath != "" {
		var err error
		if cfg, err = core.LoadFile(opts.configPath, cfg); err != nil {
			return cfg, err
		}
	}
	if opts.apiURL != "" {
		cfg.APIURL = opts.apiURL
	}
	if opts.sessionBackend != "" {
		cfg.SessionBackend = opts.sessionBackend
	}
	if opts.sessionFile != "" {
		cfg.SessionFile = opts.sessionFile
	}
	return cfg, nil
}

type app struct {
	opts    options
	in      *bufio.Reader
	api     *core.APIClient
	auth    *core.AuthController
	closers []io.Closer
}

func newApp(ctx context.Context, cfg core.Config, opts options) (*app, error) {
	persister, closer, err := core.OpenPersister(cfg)
	if err != nil {
		return nil, err
	}
	store := core.OpenCredentialStore(ctx, persister)

	api := core.NewAPIClient(cfg.APIURL, cfg.RequestTimeout, store)
	api.SetOrigin(cfg.Origin)

	clock := clockwork.NewRealClock()
	auth := core.NewAuthController(store, core.NewValidator(clock, api), api, core.AuthOptions{
		Navigator:    core.NavigatorFunc(navigate),
		Clock:        clock,
		PollInterval: cfg.PollInterval,
	})
	return &app{
		opts:    opts,
		in:      bufio.NewReader(os.Stdin),
		api:     api,
		auth:    auth,
		closers: []io.Closer{closer},
	}, nil
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			log.Printf("[admin] close: %v", err)
		}
	}
}

func navigate(route string, _ bool) {
	if route == core.RouteLogin {
		fmt.Fprintln(os.Stderr, "sesión finalizada; ejecuta `admin login` para continuar")
	}
}

func (a *app) login(ctx context.Context) error {
	password := a.opts.password
	if password == "" {
		password = a.prompt("Contraseña: ")
	}
	sess, err := a.auth.Login(ctx, a.opts.email, password)
	if err != nil {
		return err
	}
	printJSON(sess.User)
	return nil
}

func (a *app) register(ctx context.Context) error {
	password := a.opts.password
	if password == "" {
		password = a.prompt("Contraseña: ")
	}
	confirm := a.opts.confirmPassword
	if confirm == "" {
		confirm = a.prompt("Confirmar contraseña: ")
	}
	sess, err := a.auth.Register(ctx, core.RegisterInput{
		Name:            a.opts.name,
		Lastname:        a.opts.lastname,
		Email:           a.opts.email,
		Password:        password,
		ConfirmPassword: confirm,
	})
	if errors.Is(err, core.ErrEmailAlreadyRegistered) {
		fmt.Fprintln(os.Stderr, "ese email ya tiene cuenta; usa `admin login`")
	}
	if err != nil {
		return err
	}
	printJSON(sess.User)
	return nil
}

func (a *app) validate(ctx context.Context) error {
	if !a.auth.Confirm(ctx) {
		return core.ErrSessionExpired
	}
	sess, _ := a.auth.Get()
	printJSON(map[string]any{"valid": true, "expires_at": sess.ExpiresAt})
	return nil
}

// status prints the dashboard summary; a rejected session logs out.
func (a *app) status(ctx context.Context) error {
	if !a.auth.ValidateToken(ctx) {
		return core.ErrSessionExpired
	}
	st, err := a.api.Status(ctx)
	if errors.Is(err, core.ErrSessionExpired) {
		a.auth.Expire(ctx)
	}
	if err != nil {
		return err
	}
	printJSON(st)
	return nil
}

// watch keeps the session poll running until interrupted or the session ends.
func (a *app) watch(ctx context.Context) error {
	w := a.auth.Watch(ctx)
	select {
	case <-ctx.Done():
	case <-w.Done():
	}
	w.Stop()
	if w.Expired() {
		return core.ErrSessionExpired
	}
	return nil
}

func (a *app) types(ctx context.Context, args []string) error {
	screen := core.NewCatalogTypeScreen(a.api.CatalogTypes(), a.auth)
	defer screen.Close()
	if err := screen.Load(ctx); err != nil {
		return err
	}

	switch sub(args) {
	case "list":
		screen.Search(a.opts.search)
		printJSON(screen.Visible())
		return nil
	case "create":
		if err := screen.Create(); err != nil {
			return err
		}
		saved, err := screen.Submit(ctx, core.CatalogTypeFields{Description: arg(args, 1), Active: !a.opts.inactive})
		return a.report(saved, err, messageOf(screen.Message))
	case "update":
		item, err := findByID(screen.Items(), arg(args, 1), func(t core.CatalogType) int64 { return t.ID })
		if err != nil {
			return err
		}
		if err := screen.Edit(item); err != nil {
			return err
		}
		description := arg(args, 2)
		if description == "" {
			description = item.Description
		}
		saved, err := screen.Submit(ctx, core.CatalogTypeFields{Description: description, Active: !a.opts.inactive})
		return a.report(saved, err, messageOf(screen.Message))
	case "delete":
		item, err := findByID(screen.Items(), arg(args, 1), func(t core.CatalogType) int64 { return t.ID })
		if err != nil {
			return err
		}
		ok, err := screen.Delete(ctx, item, a.confirmer())
		return a.reportDelete(ok, err, messageOf(screen.Message))
	default:
		return fmt.Errorf("usage: admin types list|create|update|delete")
	}
}

type catalogView struct {
	core.Catalog
	TypeName   string          `json:"type_name"`
	FinalPrice decimal.Decimal `json:"final_price"`
}

func (a *app) catalogs(ctx context.Context, args []string) error {
	screen := core.NewCatalogScreen(a.api.Catalogs(), a.api.CatalogTypes(), a.auth)
	defer screen.Close()
	if err := screen.Load(ctx); err != nil {
		return err
	}

	switch sub(args) {
	case "list":
		screen.Search(a.opts.search)
		views := make([]catalogView, 0)
		for _, c := range screen.Visible() {
			views = append(views, catalogView{Catalog: c, TypeName: c.TypeName(), FinalPrice: c.FinalPrice()})
		}
		printJSON(views)
		return nil
	case "types":
		printJSON(screen.TypeOptions())
		return nil
	case "create":
		fields, err := a.catalogFields(core.CatalogFields{})
		if err != nil {
			return err
		}
		if err := screen.Create(); err != nil {
			return err
		}
		saved, err := screen.Submit(ctx, fields)
		return a.report(saved, err, messageOf(screen.Message))
	case "update":
		item, err := findByID(screen.Items(), arg(args, 1), func(c core.Catalog) int64 { return c.ID })
		if err != nil {
			return err
		}
		fields, err := a.catalogFields(core.CatalogFields{
			Name:          item.Name,
			Description:   item.Description,
			CatalogTypeID: item.CatalogTypeID,
			Cost:          item.Cost,
			Discount:      item.Discount,
		})
		if err != nil {
			return err
		}
		if err := screen.Edit(item); err != nil {
			return err
		}
		saved, err := screen.Submit(ctx, fields)
		return a.report(saved, err, messageOf(screen.Message))
	case "delete":
		item, err := findByID(screen.Items(), arg(args, 1), func(c core.Catalog) int64 { return c.ID })
		if err != nil {
			return err
		}
		ok, err := screen.Delete(ctx, item, a.confirmer())
		return a.reportDelete(ok, err, messageOf(screen.Message))
	default:
		return fmt.Errorf("usage: admin catalogs list|types|create|update|delete")
	}
}

// catalogFields applies the flags the operator set on top of base.
func (a *app) catalogFields(base core.CatalogFields) (core.CatalogFields, error) {
	f := base
	f.Active = !a.opts.inactive
	if a.opts.name != "" {
		f.Name = a.opts.name
	}
	if a.opts.description != "" {
		f.Description = a.opts.description
	}
	if a.opts.typeID != 0 {
		f.CatalogTypeID = a.opts.typeID
	}
	if a.opts.costSet {
		cost, err := decimal.NewFromString(a.opts.cost)
		if err != nil {
			return f, fmt.Errorf("--cost: %w", err)
		}
		f.Cost = cost
	}
	if a.opts.discountSet {
		discount, err := decimal.NewFromString(a.opts.discount)
		if err != nil {
			return f, fmt.Errorf("--discount: %w", err)
		}
		f.Discount = discount
	}
	return f, nil
}

func (a *app) confirmer() core.Confirmer {
	if a.opts.yes {
		return core.ConfirmFunc(func(string) bool { return true })
	}
	return core.ConfirmFunc(func(prompt string) bool {
		answer := a.prompt(prompt + " [s/N]: ")
		switch strings.ToLower(answer) {
		case "s", "si", "sí", "y", "yes":
			return true
		}
		return false
	})
}

func (a *app) prompt(label string) string {
	fmt.Fprint(os.Stderr, label)
	line, _ := a.in.ReadString('\n')
	return strings.TrimSpace(line)
}

func (a *app) report(saved any, err error, msg string) error {
	if errors.Is(err, core.ErrReloadFailed) {
		printJSON(saved)
		return err
	}
	if err != nil {
		return err
	}
	if msg != "" {
		fmt.Fprintln(os.Stderr, msg)
	}
	printJSON(saved)
	return nil
}

func (a *app) reportDelete(ok bool, err error, msg string) error {
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(os.Stderr, "cancelado")
		return nil
	}
	if msg != "" {
		fmt.Fprintln(os.Stderr, msg)
	}
	return nil
}

func messageOf(get func() (core.Message, bool)) string {
	m, ok := get()
	if !ok {
		return ""
	}
	return m.Text
}

func findByID[T any](items []T, raw string, id func(T) int64) (T, error) {
	var zero T
	want, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || want <= 0 {
		return zero, fmt.Errorf("invalid id %q", raw)
	}
	for _, item := range items {
		if id(item) == want {
			return item, nil
		}
	}
	return zero, fmt.Errorf("id %d not found", want)
}

func sub(args []string) string {
	if len(args) == 0 {
		return "list"
	}
	return strings.ToLower(args[0])
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func printJSON(v any) {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(bytes))
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Kakariko admin - operator client for the catalog API.

Usage:
  admin [flags] <command> [args]

Commands:
  login --email <email> [--password <pw>]
  register --name <n> --lastname <l> --email <e> [--password <pw> --confirm-password <pw>]
  logout
  whoami
  validate
  status
  watch
  types list [--search <term>]
  types create <description> [--inactive]
  types update <id> [<description>] [--inactive]
  types delete <id> [--yes]
  catalogs list [--search <term>]
  catalogs types
  catalogs create --name <n> --type-id <id> [--description <d>] [--cost <c>] [--discount <pct>]
  catalogs update <id> [--name ...] [--type-id ...] [--cost ...] [--discount ...] [--inactive]
  catalogs delete <id> [--yes]

Environment Variables:
  API_URL, API_ORIGIN, SESSION_BACKEND, SESSION_FILE, SESSION_KEY, REDIS_URL,
  LOG_DIR, POLL_INTERVAL_SEC, REQUEST_TIMEOUT_SEC

Flags:
`)
	flagSet.PrintDefaults()
}
