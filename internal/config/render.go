// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Format selects the rendering of `dtox config show`.
type Format string

const (
	FormatCUE  Format = "cue"
	FormatTOML Format = "toml"
)

// Render writes cfg in the requested format.
func Render(cfg *Config, format Format) (string, error) {
	switch format {
	case FormatCUE, "":
		return GenerateCUE(cfg), nil
	case FormatTOML:
		return GenerateTOML(cfg)
	default:
		return "", fmt.Errorf("unknown config format %q (expected cue or toml)", format)
	}
}

// GenerateTOML renders cfg as TOML. The registry password is never included.
func GenerateTOML(cfg *Config) (string, error) {
	out, err := toml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("render config as TOML: %w", err)
	}
	return string(out), nil
}

// GenerateCUE renders cfg as a dtox.cue document that validates against the
// schema. The registry password is never included.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// dtox configuration\n\n")
	fmt.Fprintf(&sb, "project: %q\n", cfg.Project)
	fmt.Fprintf(&sb, "engine:  %q\n", cfg.Engine)

	writeLayer(&sb, "base", cfg.Base, true)
	writeLayer(&sb, "derived", cfg.Derived, false)

	sb.WriteString("\ncache: {\n")
	fmt.Fprintf(&sb, "\timage:         %q\n", cfg.Cache.Image)
	fmt.Fprintf(&sb, "\ttag:           %q\n", cfg.Cache.Tag)
	fmt.Fprintf(&sb, "\tmode:          %q\n", cfg.Cache.Mode)
	fmt.Fprintf(&sb, "\tdata_path:     %q\n", cfg.Cache.DataPath)
	fmt.Fprintf(&sb, "\tvolume_suffix: %q\n", cfg.Cache.VolumeSuffix)
	fmt.Fprintf(&sb, "\tmerge_base:    %q\n", cfg.Cache.MergeBase)
	fmt.Fprintf(&sb, "\texport_path:   %q\n", cfg.Cache.ExportPath)
	fmt.Fprintf(&sb, "\tworkdir:       %q\n", cfg.Cache.Workdir)
	fmt.Fprintf(&sb, "\tparallelism:   %d\n", cfg.Cache.Parallelism)
	fmt.Fprintf(&sb, "\tcommand:       %q\n", cfg.Cache.Command)
	fmt.Fprintf(&sb, "\tcontext_dir:   %q\n", cfg.Cache.ContextDir)
	fmt.Fprintf(&sb, "\tdockerfile:    %q\n", cfg.Cache.Dockerfile)
	fmt.Fprintf(&sb, "\tpex_repo:      %q\n", cfg.Cache.PexRepo)
	fmt.Fprintf(&sb, "\tgit_ref:       %q\n", cfg.Cache.GitRef)
	sb.WriteString("}\n")

	sb.WriteString("\nmatrix: {\n")
	fmt.Fprintf(&sb, "\tfile:   %q\n", cfg.Matrix.File)
	fmt.Fprintf(&sb, "\tjob:    %q\n", cfg.Matrix.Job)
	fmt.Fprintf(&sb, "\tkey:    %q\n", cfg.Matrix.Key)
	fmt.Fprintf(&sb, "\tshards: %s\n", cueList(cfg.Matrix.Shards))
	sb.WriteString("}\n")

	sb.WriteString("\njob: {\n")
	fmt.Fprintf(&sb, "\tworkdir:        %q\n", cfg.Job.Workdir)
	fmt.Fprintf(&sb, "\ttmp_path:       %q\n", cfg.Job.TmpPath)
	fmt.Fprintf(&sb, "\ttox_state_path: %q\n", cfg.Job.ToxStatePath)
	fmt.Fprintf(&sb, "\tforward_env:    %s\n", cueList(cfg.Job.ForwardEnv))
	fmt.Fprintf(&sb, "\tinspect_shell:  %q\n", cfg.Job.InspectShell)
	fmt.Fprintf(&sb, "\tfixup_image:    %q\n", cfg.Job.FixupImage)
	sb.WriteString("}\n")

	sb.WriteString("\nregistry: {\n")
	if cfg.Registry.Username != "" {
		fmt.Fprintf(&sb, "\tusername: %q\n", cfg.Registry.Username)
	}
	fmt.Fprintf(&sb, "\tinsecure: %v\n", cfg.Registry.Insecure)
	sb.WriteString("}\n")

	return sb.String()
}

func writeLayer(sb *strings.Builder, name string, l LayerConfig, withMode bool) {
	fmt.Fprintf(sb, "\n%s: {\n", name)
	fmt.Fprintf(sb, "\trepository:  %q\n", l.Repository)
	fmt.Fprintf(sb, "\tcontext_dir: %q\n", l.ContextDir)
	fmt.Fprintf(sb, "\tdockerfile:  %q\n", l.Dockerfile)
	fmt.Fprintf(sb, "\tinputs:      %s\n", cueList(l.Inputs))
	if withMode {
		fmt.Fprintf(sb, "\tmode:        %q\n", l.Mode)
	}
	sb.WriteString("}\n")
}

func cueList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
