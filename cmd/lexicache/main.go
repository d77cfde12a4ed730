// Command lexicache looks up dictionary entries and manages the local entry
// cache.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/ZaguanLabs/lexicache"
	"github.com/ZaguanLabs/lexicache/config"
	"github.com/ZaguanLabs/lexicache/history"
	"github.com/ZaguanLabs/lexicache/prefs"
	"github.com/ZaguanLabs/lexicache/storage"
)

// Build-time variables (can be overridden with ldflags)
var (
	version   = lexicache.Version
	commit    = lexicache.GitCommit
	buildDate = lexicache.BuildDate
)

const usage = `usage: lexicache [flags] <command> [args]

commands:
  lookup [-stream] [-refresh] [-raw] <term>   look up a term
  prefetch <term>...                           warm the cache for several terms
  versions <term>                              list cached versions of a term
  activate <term> <version-id>                 make a version active
  remove <term> <version-id>...                delete versions of a term
  favorite <term>                              star or unstar a term
  history [-policy id] [-favorites] [-load f] list past lookups
  voice [-rate r] [name]                       show or set the voice for -lang
  session                                      show the signed-in user
  signin <user-id> <token>                     store credentials
  signout                                      forget credentials
  clear                                        drop every cached entry
  export <file>                                write persisted stores to a file
  import <file>                                read persisted stores from a file
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("lexicache", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fmt.Fprintln(stderr, "\nflags:")
		fs.PrintDefaults()
	}

	configPath := fs.String("config", "", "Config file (YAML)")
	backend := fs.String("backend", "", "Storage backend: sqlite, redis or memory (overrides config)")
	lang := fs.String("lang", "en", "Language of the term")
	flavor := fs.String("flavor", string(lexicache.FlavorMonolingual), "Entry flavor: mono, bi or kids")
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	quiet := fs.Bool("quiet", false, "Suppress log output")
	showVersion := fs.Bool("version", false, "Show version")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Fprintf(stdout, "%s %s\n", lexicache.Name, version)
		if commit != "unknown" && commit != "" {
			fmt.Fprintf(stdout, "  commit:  %s\n", commit)
		}
		if buildDate != "unknown" && buildDate != "" {
			fmt.Fprintf(stdout, "  built:   %s\n", buildDate)
		}
		return nil
	}

	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("a command is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *backend != "" {
		cfg.Storage.Backend = *backend
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	a, err := newApp(cfg, stdout, stderr, *quiet)
	if err != nil {
		return err
	}
	defer a.close()

	c := &cli{app: a, lang: *lang, flavor: lexicache.Flavor(*flavor), json: *jsonOutput}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "lookup":
		return c.lookup(ctx, rest)
	case "prefetch":
		return c.prefetch(ctx, rest)
	case "versions":
		return c.versions(rest)
	case "activate":
		return c.activate(rest)
	case "remove":
		return c.remove(rest)
	case "favorite":
		return c.favorite(rest)
	case "history":
		return c.listHistory(ctx, rest)
	case "voice":
		return c.setVoice(rest)
	case "session":
		return c.showSession()
	case "signin":
		return c.signIn(rest)
	case "signout":
		prefs.SignOut(c.session)
		fmt.Fprintln(stdout, "Signed out.")
		return nil
	case "clear":
		a.dict.Clear()
		fmt.Fprintln(stdout, "Cache cleared.")
		return nil
	case "export":
		return c.export(ctx, rest)
	case "import":
		return c.importFile(ctx, rest)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// cli runs the subcommands against an app.
type cli struct {
	*app
	lang   string
	flavor lexicache.Flavor
	json   bool
}

func (c *cli) request(term string) lexicache.LookupRequest {
	return lexicache.LookupRequest{Term: term, Language: c.lang, Flavor: c.flavor}
}

func (c *cli) lookup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("lookup", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	stream := fs.Bool("stream", false, "Stream the entry as it is written")
	refresh := fs.Bool("refresh", false, "Fetch a new version even when one is cached")
	raw := fs.Bool("raw", false, "Print entry HTML instead of text")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("lookup: a term is required")
	}

	req := c.request(strings.Join(fs.Args(), " "))
	req.Refresh = *refresh

	if err := c.withSources(); err != nil {
		return err
	}

	var v lexicache.WordVersion
	var err error
	if *stream {
		onFragment := func(fragment, _ string) {
			if !c.json {
				fmt.Fprint(c.stdout, fragment)
			}
		}
		v, err = c.dict.LookupStream(ctx, req, onFragment)
		if err == nil && !c.json {
			fmt.Fprintln(c.stdout)
		}
	} else {
		v, err = c.dict.Lookup(ctx, req)
	}
	if err != nil {
		return fmt.Errorf("lookup failed: %w", err)
	}

	c.history.Record(req, v)

	if c.json {
		return writeJSON(c.stdout, entryOutput{TermKey: req.TermKey(), Version: v})
	}
	if *stream {
		return nil
	}
	return c.printEntry(v, *raw)
}

func (c *cli) printEntry(v lexicache.WordVersion, raw bool) error {
	if raw {
		fmt.Fprintln(c.stdout, v.Content)
		return nil
	}
	text, err := lexicache.PlainText(v.Content)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, text)
	return nil
}

func (c *cli) prefetch(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("prefetch: at least one term is required")
	}
	if err := c.withSources(); err != nil {
		return err
	}

	reqs := make([]lexicache.LookupRequest, len(args))
	for i, term := range args {
		reqs[i] = c.request(term)
	}

	result, err := c.dict.Prefetch(ctx, reqs, c.cfg.Source.PrefetchLimit)
	if c.json {
		if jerr := writeJSON(c.stdout, result); jerr != nil {
			return jerr
		}
	} else {
		fmt.Fprintf(c.stdout, "Cached:  %d\n", result.Cached)
		fmt.Fprintf(c.stdout, "Fetched: %d\n", result.Fetched)
		fmt.Fprintf(c.stdout, "Failed:  %d\n", result.Failed)
	}
	return err
}

func (c *cli) versions(args []string) error {
	if len(args) == 0 {
		return errors.New("versions: a term is required")
	}
	key := c.request(strings.Join(args, " ")).TermKey()

	record, ok := c.dict.Record(key)
	if !ok {
		return fmt.Errorf("no cached entry for %q", key)
	}

	if c.json {
		return writeJSON(c.stdout, recordOutput{TermKey: key, Record: record})
	}

	fmt.Fprintf(c.stdout, "%s (%d versions)\n", key, len(record.Versions))
	for _, v := range record.Versions {
		marker := " "
		if v.ID == record.ActiveVersionID {
			marker = "*"
		}
		created := v.CreatedAt
		if ts, ok := v.Timestamp(); ok {
			created = ts.Local().Format(time.DateTime)
		}
		fmt.Fprintf(c.stdout, "%s %-38s %-19s %s\n", marker, v.ID, created, lexicache.Preview(v.Content, 50))
	}
	return nil
}

func (c *cli) activate(args []string) error {
	if len(args) != 2 {
		return errors.New("activate: a term and a version id are required")
	}
	key := c.request(args[0]).TermKey()

	active, ok := c.dict.SetActiveVersion(key, args[1])
	if !ok {
		return fmt.Errorf("no cached entry for %q", key)
	}
	if active != args[1] {
		return fmt.Errorf("version %q not found; %q remains active", args[1], active)
	}
	fmt.Fprintf(c.stdout, "Active version of %s is now %s\n", key, active)
	return nil
}

func (c *cli) remove(args []string) error {
	if len(args) < 2 {
		return errors.New("remove: a term and at least one version id are required")
	}
	key := c.request(args[0]).TermKey()

	if _, ok := c.dict.Record(key); !ok {
		return fmt.Errorf("no cached entry for %q", key)
	}
	if c.dict.RemoveVersions(key, args[1:]...) {
		record, _ := c.dict.Record(key)
		fmt.Fprintf(c.stdout, "%s has %d versions left, active %s\n", key, len(record.Versions), record.ActiveVersionID)
	} else {
		fmt.Fprintf(c.stdout, "%s removed\n", key)
	}
	return nil
}

func (c *cli) favorite(args []string) error {
	if len(args) == 0 {
		return errors.New("favorite: a term is required")
	}
	req := c.request(strings.Join(args, " "))

	var versionID string
	if v, ok := c.dict.Entry(req.TermKey(), ""); ok {
		versionID = v.ID
	}

	starred := prefs.ToggleFavorite(c.favorites, req, versionID, time.Now())
	if fav, ok := c.history.ToggleFavorite(req.TermKey()); ok && fav != starred {
		c.history.ToggleFavorite(req.TermKey())
	}

	if starred {
		fmt.Fprintf(c.stdout, "Starred %s\n", req.TermKey())
	} else {
		fmt.Fprintf(c.stdout, "Unstarred %s\n", req.TermKey())
	}
	return nil
}

func (c *cli) listHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	policy := fs.String("policy", "", "Set the retention policy (7d, 30d, 90d, 180d, 365d, forever)")
	favorites := fs.Bool("favorites", false, "Only list starred terms")
	load := fs.String("load", "", "Replace the history with the items in a JSON file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *load != "" {
		c.history.SetSource(history.NewFileSource(*load))
		if _, err := c.history.LoadAll(ctx); err != nil {
			return fmt.Errorf("loading history: %w", err)
		}
	}

	if *policy != "" {
		if _, ok := history.LookupPolicy(*policy); !ok {
			return fmt.Errorf("unknown retention policy %q", *policy)
		}
		c.history.SetRetentionPolicy(*policy)
	}

	items := c.history.Items()
	if *favorites {
		var starred []history.Item
		for _, it := range items {
			if prefs.IsFavorite(c.favorites, it.TermKey) {
				starred = append(starred, it)
			}
		}
		items = starred
	}

	if c.json {
		return writeJSON(c.stdout, historyOutput{Policy: c.history.State().RetentionPolicy, Items: items})
	}

	fmt.Fprintf(c.stdout, "Retention: %s\n", c.history.State().RetentionPolicy)
	for _, it := range items {
		star := " "
		if prefs.IsFavorite(c.favorites, it.TermKey) {
			star = "*"
		}
		when := it.CreatedAt
		if ts, ok := it.Timestamp(); ok {
			when = ts.Local().Format(time.DateTime)
		}
		fmt.Fprintf(c.stdout, "%s %-30s %-19s %d versions\n", star, it.TermKey, when, len(it.Versions))
	}
	return nil
}

func (c *cli) setVoice(args []string) error {
	fs := flag.NewFlagSet("voice", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	rate := fs.Float64("rate", 0, "Speech rate (0.5 to 2.0)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	lang := lexicache.NormalizeLanguage(c.lang)
	if fs.NArg() > 0 {
		prefs.SetVoice(c.voice, lang, strings.Join(fs.Args(), " "))
	}
	if *rate > 0 {
		prefs.SetRate(c.voice, *rate)
	}

	v := c.voice.GetState()
	if c.json {
		return writeJSON(c.stdout, voiceOutput{Language: lang, Voice: v.Voices[lang], Rate: v.Rate})
	}
	name := v.Voices[lang]
	if name == "" {
		name = "(default)"
	}
	fmt.Fprintf(c.stdout, "Voice for %s: %s (rate %.2f)\n", lang, name, v.Rate)
	return nil
}

func (c *cli) showSession() error {
	s := c.session.GetState()
	if c.json {
		return writeJSON(c.stdout, sessionOutput{UserID: s.UserID, SignedIn: s.SignedIn()})
	}
	if !s.SignedIn() {
		fmt.Fprintln(c.stdout, "Not signed in.")
		return nil
	}
	fmt.Fprintf(c.stdout, "Signed in as %s\n", s.UserID)
	return nil
}

func (c *cli) signIn(args []string) error {
	if len(args) != 2 {
		return errors.New("signin: a user id and a token are required")
	}
	prefs.SignIn(c.session, args[0], args[1])
	fmt.Fprintf(c.stdout, "Signed in as %s\n", args[0])
	return nil
}

func (c *cli) export(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("export: a file is required")
	}
	exporter := storage.NewExporter(c.resolver)
	meta := map[string]string{"app": lexicache.Name, "app_version": version}
	if err := exporter.ExportToFile(ctx, args[0], meta); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	fmt.Fprintf(c.stdout, "Exported to %s\n", args[0])
	return nil
}

func (c *cli) importFile(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("import: a file is required")
	}
	importer := storage.NewImporter(c.resolver)
	result, err := importer.ImportFromFile(ctx, args[0])
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	fmt.Fprintf(c.stdout, "Imported %d stores (%d failed)\n", result.Imported, result.Failed)
	return nil
}

type entryOutput struct {
	TermKey string                `json:"term_key"`
	Version lexicache.WordVersion `json:"version"`
}

type recordOutput struct {
	TermKey string                    `json:"term_key"`
	Record  lexicache.WordCacheRecord `json:"record"`
}

type historyOutput struct {
	Policy string         `json:"retention_policy"`
	Items  []history.Item `json:"items"`
}

type voiceOutput struct {
	Language string  `json:"language"`
	Voice    string  `json:"voice,omitempty"`
	Rate     float64 `json:"rate"`
}

type sessionOutput struct {
	UserID   string `json:"user_id,omitempty"`
	SignedIn bool   `json:"signed_in"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
