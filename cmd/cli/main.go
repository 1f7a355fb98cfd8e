// Command cb is a CLI client for the cloudbox HTTP API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/and161185/cloudbox/internal/convert"
)

// ---- config/token store ----

type tokenFile struct {
	Token string `json:"token"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "cloudbox")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "cloudbox")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tok string) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(tokenFile{Token: tok}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(tokenPath(), b, 0o600)
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", errors.New("no token saved (run: cb login -token <token>)")
		}
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.Token == "" {
		return "", errors.New("no token saved (run: cb login -token <token>)")
	}
	return tf.Token, nil
}

// ---- utils ----

func readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(p)
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func usage() {
	fmt.Fprintf(os.Stderr, `cb CLI
Usage:
  cb -addr URL <cmd> [args]

Commands:
  version
  login      -token <token>                  (saves token)
  ls
  get        -name <file> [-o out]
  put        -file <path> [-name <file>]
  share      <path>...
  share-ls   -token <share>
  share-get  -token <share> -name <file> [-o out]
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "server base URL")
	timeout := flag.Duration("timeout", time.Minute, "request timeout")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c := newClient(*addr, nil)
	if err := run(ctx, c, flag.Arg(0), flag.Args()[1:], os.Stdout); err != nil {
		fail(err)
	}
}

// run executes one subcommand; split from main for tests.
func run(ctx context.Context, c *client, cmd string, args []string, stdout io.Writer) error {
	switch cmd {
	case "version":
		fmt.Fprintf(stdout, "cb %s (%s)\n", version, buildDate)

	case "login":
		fs := flag.NewFlagSet("login", flag.ContinueOnError)
		tok := fs.String("token", "", "access token from the bot")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if strings.TrimSpace(*tok) == "" {
			return errors.New("need -token")
		}
		// validate before saving
		if _, err := c.list(ctx, kindNamespaces, *tok); err != nil {
			return err
		}
		if err := saveToken(strings.TrimSpace(*tok)); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "ok")

	case "ls":
		tok, err := loadToken()
		if err != nil {
			return err
		}
		names, err := c.list(ctx, kindNamespaces, tok)
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(stdout, n)
		}

	case "get":
		fs := flag.NewFlagSet("get", flag.ContinueOnError)
		name := fs.String("name", "", "entry name")
		out := fs.String("o", "", "output file (default stdout)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *name == "" {
			return errors.New("need -name")
		}
		tok, err := loadToken()
		if err != nil {
			return err
		}
		data, err := c.get(ctx, kindNamespaces, tok, *name)
		if err != nil {
			return err
		}
		return writeOutTo(stdout, *out, data)

	case "put":
		fs := flag.NewFlagSet("put", flag.ContinueOnError)
		file := fs.String("file", "", "file to upload (- for stdin)")
		name := fs.String("name", "", "entry name (default: base name of -file)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *file == "" {
			return errors.New("need -file")
		}
		if *name == "" {
			if *file == "-" {
				return errors.New("need -name when reading stdin")
			}
			*name = filepath.Base(*file)
		}
		tok, err := loadToken()
		if err != nil {
			return err
		}
		data, err := readAll(*file)
		if err != nil {
			return err
		}
		st, err := c.put(ctx, tok, *name, data)
		if err != nil {
			return err
		}
		printJSON(stdout, st)

	case "share":
		if len(args) == 0 {
			return errors.New("need at least one file")
		}
		files := make([]upload, 0, len(args))
		for _, p := range args {
			data, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			files = append(files, upload{Name: filepath.Base(p), Data: data})
		}
		sh, err := c.share(ctx, files)
		if err != nil {
			return err
		}
		// links point at the server the CLI talked to
		printJSON(stdout, convert.ToShare(sh, c.base))

	case "share-ls":
		fs := flag.NewFlagSet("share-ls", flag.ContinueOnError)
		tok := fs.String("token", "", "share token")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *tok == "" {
			return errors.New("need -token")
		}
		names, err := c.list(ctx, kindShares, *tok)
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(stdout, n)
		}

	case "share-get":
		fs := flag.NewFlagSet("share-get", flag.ContinueOnError)
		tok := fs.String("token", "", "share token")
		name := fs.String("name", "", "entry name")
		out := fs.String("o", "", "output file (default stdout)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *tok == "" || *name == "" {
			return errors.New("need -token and -name")
		}
		data, err := c.get(ctx, kindShares, *tok, *name)
		if err != nil {
			return err
		}
		return writeOutTo(stdout, *out, data)

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func writeOutTo(stdout io.Writer, p string, data []byte) error {
	if p == "" || p == "-" {
		_, err := stdout.Write(data)
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

func fail(err error) {
	var ae *apiError
	if errors.As(err, &ae) {
		fmt.Fprintf(os.Stderr, "http error: status=%d msg=%s\n", ae.Status, ae.Msg)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
