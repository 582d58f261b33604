package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ulock-home/ulockd/internal/config"
	"github.com/ulock-home/ulockd/internal/core"
)

func main() {
	jsonOutput := flag.Bool("json", false, "print raw JSON responses")
	addr := flag.String("addr", resolveAddr(), "daemon HTTP address")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	api := &apiClient{base: normalizeBase(*addr)}

	switch args[0] {
	case "plugins":
		pluginsCmd(ctx, api, args[1:], *jsonOutput)
	case "addresses", "locks", "status", "lock", "unlock", "refresh":
		locksCmd(ctx, api, args, *jsonOutput)
	default:
		usage()
		os.Exit(2)
	}
}

func pluginsCmd(ctx context.Context, api *apiClient, args []string, jsonOutput bool) {
	out := outputMode{json: jsonOutput}
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	switch args[0] {
	case "list":
		var plugins []core.PluginSummary
		if err := api.get(ctx, "/api/plugins", &plugins); err != nil {
			fatal("list plugins", err)
		}
		if out.json {
			out.printJSON(plugins)
			return
		}
		rows := [][]string{{"ID", "NAME", "VERSION", "STATUS"}}
		for _, plugin := range plugins {
			rows = append(rows, []string{plugin.PluginID, plugin.DisplayName, plugin.Version, plugin.Status})
		}
		out.table(rows)
	case "describe":
		if len(args) < 2 {
			fatal("describe", fmt.Errorf("missing plugin id"))
		}
		var plugin core.PluginDescriptor
		if err := api.get(ctx, "/api/plugins/"+args[1], &plugin); err != nil {
			fatal("describe plugin", err)
		}
		if out.json {
			out.printJSON(plugin)
			return
		}
		fmt.Printf("id: %s\n", plugin.PluginID)
		fmt.Printf("name: %s\n", plugin.DisplayName)
		fmt.Printf("version: %s\n", plugin.Version)
		fmt.Printf("status: %s\n", plugin.Status)
		if plugin.HealthMessage != "" {
			fmt.Printf("health: %s\n", plugin.HealthMessage)
		}
		fmt.Println("routes:")
		for _, route := range plugin.Routes {
			fmt.Printf("  - %s\n", route)
		}
		fmt.Println("dashboards:")
		for _, dash := range plugin.Dashboards {
			fmt.Printf("  - %s\n", dash)
		}
		if plugin.AgentsMD != "" {
			fmt.Println("agents_md:")
			fmt.Println(plugin.AgentsMD)
		}
	default:
		usage()
		os.Exit(2)
	}
}

type apiClient struct {
	base string
	http http.Client
}

func (c *apiClient) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, out)
}

func (c *apiClient) post(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodPost, path, out)
}

func (c *apiClient) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

func normalizeBase(addr string) string {
	addr = strings.TrimRight(addr, "/")
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	return "http://" + addr
}

func resolveAddr() string {
	if value := os.Getenv("ULOCKD_HTTP_ADDR"); value != "" {
		return value
	}
	if cfg, err := config.Load(config.DefaultPath); err == nil && cfg.Core != nil {
		addr := cfg.Core.HTTPAddr
		// A wildcard bind address is not dialable.
		if host, port, found := strings.Cut(addr, ":"); found && (host == "" || host == "0.0.0.0") {
			return "localhost:" + port
		}
		return addr
	}
	return "localhost:8080"
}

func usage() {
	fmt.Println("ulock-cli [-json] [-addr host:port] <command> [args]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  plugins list")
	fmt.Println("  plugins describe <plugin_id>")
	fmt.Println("  addresses")
	fmt.Println("  locks")
	fmt.Println("  status <lock>")
	fmt.Println("  lock <lock>")
	fmt.Println("  unlock <lock>")
	fmt.Println("  refresh")
}

func fatal(action string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", action, err)
	os.Exit(1)
}
