package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ulock-home/ulockd/internal/hass"
)

func locksCmd(ctx context.Context, api *apiClient, args []string, jsonOutput bool) {
	out := outputMode{json: jsonOutput}

	switch args[0] {
	case "addresses":
		var resp struct {
			Addresses []struct {
				ID   int64  `json:"id"`
				Name string `json:"name"`
			} `json:"addresses"`
		}
		if err := api.get(ctx, "/api/ultraloq/addresses", &resp); err != nil {
			fatal("addresses", err)
		}
		if out.json {
			out.printJSON(resp.Addresses)
			return
		}
		rows := [][]string{{"ADDRESS", "ID"}}
		for _, addr := range resp.Addresses {
			rows = append(rows, []string{addr.Name, strconv.FormatInt(addr.ID, 10)})
		}
		out.table(rows)
	case "locks":
		states := fetchLocks(ctx, api)
		if out.json {
			out.printJSON(states)
			return
		}
		rows := [][]string{{"LOCK", "UUID", "STATE", "ONLINE", "BATTERY"}}
		for _, state := range states {
			rows = append(rows, []string{
				state.Name,
				state.UUID,
				boltState(state),
				yesNo(state.Online),
				strconv.Itoa(state.Battery),
			})
		}
		out.table(rows)
	case "status":
		if len(args) < 2 {
			fatal("status", fmt.Errorf("usage: ulock-cli status <lock>"))
		}
		uuid := resolveLock(ctx, api, args[1])
		var state hass.LockState
		if err := api.get(ctx, "/api/ultraloq/locks/"+uuid, &state); err != nil {
			fatal("status", err)
		}
		if out.json {
			out.printJSON(state)
			return
		}
		printState(state)
	case "lock", "unlock":
		if len(args) < 2 {
			fatal(args[0], fmt.Errorf("usage: ulock-cli %s <lock>", args[0]))
		}
		uuid := resolveLock(ctx, api, args[1])
		var state hass.LockState
		if err := api.post(ctx, "/api/ultraloq/locks/"+uuid+"/"+args[0], &state); err != nil {
			fatal(args[0], err)
		}
		if out.json {
			out.printJSON(state)
			return
		}
		fmt.Printf("ok: %s is %s\n", state.Name, strings.ToLower(boltState(state)))
	case "refresh":
		if err := api.post(ctx, "/api/ultraloq/refresh", nil); err != nil {
			fatal("refresh", err)
		}
		fmt.Println("refresh scheduled")
	default:
		usage()
		os.Exit(2)
	}
}

func fetchLocks(ctx context.Context, api *apiClient) []hass.LockState {
	var resp struct {
		Locks []hass.LockState `json:"locks"`
	}
	if err := api.get(ctx, "/api/ultraloq/locks", &resp); err != nil {
		fatal("locks", err)
	}
	return resp.Locks
}

// resolveLock accepts either a device uuid or a lock name.
func resolveLock(ctx context.Context, api *apiClient, input string) string {
	states := fetchLocks(ctx, api)
	for _, state := range states {
		if state.UUID == input {
			return state.UUID
		}
	}

	needle := normalizeName(input)
	available := make([]string, 0, len(states))
	for _, state := range states {
		if normalizeName(state.Name) == needle {
			return state.UUID
		}
		available = append(available, state.Name)
	}
	sort.Strings(available)
	fatal("resolve lock", fmt.Errorf("lock %q not found. Available: %s", input, strings.Join(available, ", ")))
	return ""
}

func normalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.NewReplacer(" ", "_", "-", "_").Replace(name)
	for strings.Contains(name, "__") {
		name = strings.ReplaceAll(name, "__", "_")
	}
	return name
}

func printState(state hass.LockState) {
	fmt.Printf("LOCK:     %s (%s)\n", state.Name, state.Model)
	fmt.Printf("UUID:     %s\n", state.UUID)
	fmt.Printf("STATE:    %s\n", boltState(state))
	fmt.Printf("ONLINE:   %s\n", yesNo(state.Online))
	fmt.Printf("BATTERY:  %d\n", state.Battery)
	fmt.Printf("WIFI:     %d\n", state.WifiStrength)
	fmt.Printf("BLE:      %d\n", state.BLEStrength)
	if state.Firmware != "" {
		fmt.Printf("FIRMWARE: %s\n", state.Firmware)
	}
}

func boltState(state hass.LockState) string {
	switch {
	case !state.Known:
		return "UNKNOWN"
	case state.Jammed:
		return "JAMMED"
	case state.Locked:
		return "LOCKED"
	default:
		return "UNLOCKED"
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
