// Package cmdutil carries shared state and helpers for ddir commands.
package cmdutil

import (
	"context"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/marmos91/dittodir/cmd/ddir/config"
	"github.com/marmos91/dittodir/internal/cli/output"
	"github.com/marmos91/dittodir/internal/cli/prompt"
	"github.com/marmos91/dittodir/internal/logger"
	"github.com/marmos91/dittodir/pkg/ldap"
)

// Flags holds the global flag values synced by the root command.
var Flags struct {
	ConfigPath   string
	URL          string
	BindDN       string
	BindPassword string
	StartTLS     bool
	Insecure     bool
	Timeout      time.Duration
	Output       string
	Verbose      bool
}

// LoadConfig loads the file/env configuration and overlays global flags.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(Flags.ConfigPath)
	if err != nil {
		return nil, err
	}

	if Flags.URL != "" {
		cfg.URL = Flags.URL
	}
	if Flags.BindDN != "" {
		cfg.BindDN = Flags.BindDN
	}
	if Flags.BindPassword != "" {
		cfg.BindPassword = Flags.BindPassword
	}
	if Flags.StartTLS {
		cfg.StartTLS = true
	}
	if Flags.Insecure {
		cfg.Insecure = true
	}
	if Flags.Timeout != 0 {
		cfg.Timeout = Flags.Timeout
	}
	if Flags.Verbose {
		cfg.Logging.Level = "DEBUG"
	}
	return cfg, cfg.Validate()
}

// Connect dials the configured server and performs the initial bind.
func Connect(ctx context.Context) (*ldap.Conn, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return nil, err
	}

	settings := &ldap.Settings{
		Timeout:     cfg.Timeout,
		StartTLS:    cfg.StartTLS,
		NoTLSVerify: cfg.Insecure,
	}
	conn, err := ldap.DialURL(cfg.URL, settings)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.URL, err)
	}

	if cfg.BindDN != "" {
		password := cfg.BindPassword
		if password == "" {
			password, err = prompt.Password(fmt.Sprintf("Password for %s", cfg.BindDN))
			if err != nil {
				conn.Close()
				return nil, err
			}
		}
		if _, err := conn.Bind(ctx, cfg.BindDN, password); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

// entryDoc is the JSON/YAML projection of a search entry.
type entryDoc struct {
	DN         string              `json:"dn" yaml:"dn"`
	Attributes map[string][]string `json:"attributes" yaml:"attributes"`
}

// RenderEntries writes search entries in the requested format
// (table, json, yaml).
func RenderEntries(w io.Writer, format string, entries []*ldap.Entry) error {
	switch format {
	case "", "table":
		table := output.NewTableData("DN", "ATTRIBUTE", "VALUE")
		for _, entry := range entries {
			dn := entry.DN
			for _, attr := range entry.Attributes {
				for _, raw := range attr.ByteValues {
					value := string(raw)
					if !utf8.Valid(raw) {
						value = fmt.Sprintf("<%d binary bytes>", len(raw))
					}
					table.AddRow(dn, attr.Name, value)
					dn = "" // print the DN once per entry
				}
			}
			if dn != "" {
				table.AddRow(dn, "", "")
			}
		}
		return output.PrintTable(w, table)
	case "json":
		return output.PrintJSON(w, entryDocs(entries))
	case "yaml":
		return output.PrintYAML(w, entryDocs(entries))
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func entryDocs(entries []*ldap.Entry) []entryDoc {
	docs := make([]entryDoc, len(entries))
	for i, entry := range entries {
		doc := entryDoc{DN: entry.DN, Attributes: map[string][]string{}}
		for _, attr := range entry.Attributes {
			doc.Attributes[attr.Name] = append(doc.Attributes[attr.Name], attr.Values...)
		}
		docs[i] = doc
	}
	return docs
}
