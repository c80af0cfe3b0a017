/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/fulmenhq/assetneat/pkg/buildinfo"
	"github.com/fulmenhq/assetneat/pkg/config"
	"github.com/spf13/cobra"
)

// versionInfo is the payload of `version --json`.
type versionInfo struct {
	Version       string `json:"version"`
	Commit        string `json:"commit,omitempty"`
	BuildDate     string `json:"buildDate,omitempty"`
	ModuleVersion string `json:"moduleVersion,omitempty"`
	ConfigSchema  string `json:"configSchema"`
	GoVersion     string `json:"goVersion"`
	Platform      string `json:"platform"`
	Arch          string `json:"arch"`
}

func newVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show assetneat version and build information",
		Args:  cobra.NoArgs,
		RunE:  runVersion,
	}
	cmd.Flags().Bool("extended", false, "Show detailed build information")
	cmd.Flags().Bool("json", false, "Output version information in JSON format")
	return cmd
}

func currentVersionInfo() versionInfo {
	return versionInfo{
		Version:       buildinfo.Version(),
		Commit:        buildinfo.Commit,
		BuildDate:     buildinfo.BuildDate,
		ModuleVersion: buildinfo.ModuleVersion(),
		ConfigSchema:  config.CurrentSchemaVersion,
		GoVersion:     runtime.Version(),
		Platform:      runtime.GOOS,
		Arch:          runtime.GOARCH,
	}
}

func runVersion(cmd *cobra.Command, _ []string) error {
	extended, _ := cmd.Flags().GetBool("extended")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	out := cmd.OutOrStdout()
	info := currentVersionInfo()

	if jsonOutput {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal version info: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	_, _ = fmt.Fprintf(out, "assetneat %s\n", info.Version)
	if !extended {
		return nil
	}
	if info.Commit != "" {
		_, _ = fmt.Fprintf(out, "Commit: %s\n", info.Commit)
	}
	if info.BuildDate != "" {
		_, _ = fmt.Fprintf(out, "Built: %s\n", info.BuildDate)
	}
	if info.ModuleVersion != "" {
		_, _ = fmt.Fprintf(out, "Module: %s\n", info.ModuleVersion)
	}
	_, _ = fmt.Fprintf(out, "Config schema: v%s\n", info.ConfigSchema)
	_, _ = fmt.Fprintf(out, "Go: %s %s/%s\n", info.GoVersion, info.Platform, info.Arch)
	return nil
}
