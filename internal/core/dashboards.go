package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DashboardsMap materializes every plugin's embedded dashboards to
// the URL paths they are served under.
func DashboardsMap(plugins []Plugin) map[string][]byte {
	result := make(map[string][]byte)
	for _, plugin := range plugins {
		id := plugin.Manifest().PluginID
		for _, dash := range plugin.Dashboards() {
			result["/dashboards/"+id+"/"+dash.Name+".json"] = dash.JSON
		}
	}
	return result
}

// WriteDashboards mirrors the served dashboards to disk for Grafana
// file provisioning. A dashboard at /dashboards/ultraloq/locks.json
// lands at <dir>/ultraloq/locks.json.
func WriteDashboards(dir string, plugins []Plugin) error {
	if dir == "" {
		return nil
	}

	for urlPath, data := range DashboardsMap(plugins) {
		target := filepath.Join(dir, strings.TrimPrefix(urlPath, "/dashboards/"))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("create dashboard dir: %w", err)
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return fmt.Errorf("write dashboard %s: %w", target, err)
		}
	}

	return nil
}
