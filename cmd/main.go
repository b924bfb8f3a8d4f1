// Command mobius-cli is a small device client for the Mobius API. The device
// identity is kept in a local file so every run acts as the same player.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"Mobius/logger"
	"Mobius/services/identity"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const usage = `usage: mobius-cli [-server URL] <command> [args]

commands:
  whoami                    print the device identity
  new                       ask for a free room code
  join <code> <name>        take a seat
  leave <code>
  ready <code> <true|false>
  roster <code>
  start <code> [force]      host only
  advance <code>            host only
  state <code>
  vote <code> <identity>
  secret <code>
  case <variant>
`

type client struct {
	server   string
	identity string
	http     *http.Client
}

func main() {
	godotenv.Load()
	logger.Init(false, os.Getenv("LOG_LEVEL"))

	server := flag.String("server", envOr("MOBIUS_SERVER", "http://localhost:8080"), "API base URL")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	store, err := identity.DefaultFileStore()
	if err != nil {
		log.Fatal().Err(err).Msg("Error locating identity file")
	}
	id, degraded := identity.NewProvider(store).GetOrCreateIdentity()
	if degraded {
		log.Warn().Msg("Identity could not be stored, this run uses a throwaway one")
	}

	c := &client{server: strings.TrimRight(*server, "/"), identity: id, http: &http.Client{Timeout: 10 * time.Second}}
	if err := c.run(args[0], args[1:]); err != nil {
		log.Fatal().Err(err).Msgf("%s failed", args[0])
	}
}

func (c *client) run(cmd string, args []string) error {
	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%s needs %d argument(s)", cmd, n)
		}
		return nil
	}

	switch cmd {
	case "whoami":
		fmt.Println(c.identity)
		return nil
	case "new":
		return c.do(http.MethodPost, "/rooms", nil)
	case "join":
		if err := need(2); err != nil {
			return err
		}
		return c.do(http.MethodPost, "/rooms/"+args[0]+"/join", map[string]interface{}{"name": args[1]})
	case "leave":
		if err := need(1); err != nil {
			return err
		}
		return c.do(http.MethodPost, "/rooms/"+args[0]+"/leave", nil)
	case "ready":
		if err := need(2); err != nil {
			return err
		}
		return c.do(http.MethodPut, "/rooms/"+args[0]+"/ready", map[string]interface{}{"ready": args[1] == "true"})
	case "roster":
		if err := need(1); err != nil {
			return err
		}
		return c.do(http.MethodGet, "/rooms/"+args[0], nil)
	case "start":
		if err := need(1); err != nil {
			return err
		}
		force := len(args) > 1 && args[1] == "force"
		return c.do(http.MethodPost, "/rooms/"+args[0]+"/match", map[string]interface{}{"force": force})
	case "advance":
		if err := need(1); err != nil {
			return err
		}
		return c.do(http.MethodPost, "/rooms/"+args[0]+"/match/advance", nil)
	case "state":
		if err := need(1); err != nil {
			return err
		}
		return c.do(http.MethodGet, "/rooms/"+args[0]+"/match", nil)
	case "vote":
		if err := need(2); err != nil {
			return err
		}
		return c.do(http.MethodPost, "/rooms/"+args[0]+"/votes", map[string]interface{}{"target": args[1]})
	case "secret":
		if err := need(1); err != nil {
			return err
		}
		return c.do(http.MethodGet, "/rooms/"+args[0]+"/secret", nil)
	case "case":
		if err := need(1); err != nil {
			return err
		}
		return c.do(http.MethodGet, "/content/"+args[0], nil)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

// do sends the request as this device and pretty prints the JSON answer.
func (c *client) do(method, path string, body interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.server+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("X-Device-ID", c.identity)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if json.Indent(&out, raw, "", "  ") != nil {
		out.Reset()
		out.Write(raw)
	}
	fmt.Println(out.String())
	if resp.StatusCode >= 400 {
		return fmt.Errorf("server answered %s", resp.Status)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
