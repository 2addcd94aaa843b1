package cmd

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/iksnae/assistant-session/internal"
	"github.com/spf13/cobra"
)

var (
	inspectFormat     string
	inspectSampleRows int
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect [database-path]",
	Short: "Inspect the session database",
	Long: `Inspect the schema and stored keys of a session database.

This command provides detailed information about:
  • Database schema (tables, columns, types)
  • Stored keys, their sizes and envelope versions
  • Session and message counts
  • A preview of the first stored sessions

Examples:
  assistant-session inspect                               # Inspect the default database
  assistant-session inspect /path/to/sessions.db          # Inspect a specific database
  assistant-session inspect --format json --sample 5      # JSON output with 5 sessions`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var dbPath string
		if len(args) > 0 {
			dbPath = args[0]
			if _, err := os.Stat(dbPath); err != nil {
				return fmt.Errorf("cannot inspect %s: %w", dbPath, err)
			}
		} else {
			_, paths, err := loadConfig()
			if err != nil {
				return err
			}
			if !paths.DatabaseExists() {
				return fmt.Errorf("no session database at %s - use --storage or pass a path", paths.DBPath)
			}
			dbPath = paths.DBPath
		}

		report, err := inspectDatabase(dbPath, inspectSampleRows)
		if err != nil {
			return err
		}

		switch inspectFormat {
		case "json":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		case "text", "":
			printReport(cmd.OutOrStdout(), report)
			return nil
		}
		return fmt.Errorf("unsupported format: %s (supported: text, json)", inspectFormat)
	},
}

// inspectReport describes one session database
type inspectReport struct {
	Database string          `json:"database"`
	Tables   []tableReport   `json:"tables"`
	Keys     []keyReport     `json:"keys"`
	Sample   []sessionSample `json:"sample,omitempty"`
}

type tableReport struct {
	Name    string       `json:"name"`
	Rows    int          `json:"rows"`
	Columns []ColumnInfo `json:"columns"`
}

// keyReport describes a stored key and what its value decodes to
type keyReport struct {
	Key      string `json:"key"`
	Size     int    `json:"size"`
	Kind     string `json:"kind"`
	Version  int    `json:"version,omitempty"`
	Sessions int    `json:"sessions,omitempty"`
	Messages int    `json:"messages,omitempty"`
	Value    string `json:"value,omitempty"`
	Error    string `json:"error,omitempty"`
}

type sessionSample struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Messages int    `json:"messages"`
}

func inspectDatabase(dbPath string, sample int) (*inspectReport, error) {
	db, err := internal.OpenDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	report := &inspectReport{Database: dbPath}

	tables, err := getTables(db)
	if err != nil {
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}
	hasKV := false
	for _, name := range tables {
		t, err := inspectTable(db, name)
		if err != nil {
			internal.LogWarn("Error inspecting table %s: %v", name, err)
			continue
		}
		report.Tables = append(report.Tables, t)
		if name == "kv_store" {
			hasKV = true
		}
	}
	if !hasKV {
		return report, nil
	}

	kv, err := internal.NewSQLiteKV(db, dbPath)
	if err != nil {
		return nil, err
	}
	pairs, err := kv.Pairs("")
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	for _, pair := range pairs {
		report.Keys = append(report.Keys, describeKey(pair))
		if pair.Key == internal.SessionsKey && sample > 0 {
			report.Sample = sampleSessions(pair, sample)
		}
	}
	return report, nil
}

// describeKey decodes a stored value according to its key
func describeKey(pair internal.KeyValuePair) keyReport {
	r := keyReport{Key: pair.Key, Size: len(pair.Value)}

	switch pair.Key {
	case internal.SessionsKey, internal.LegacySessionsKey:
		r.Kind = "sessions"
		sessions, version, err := internal.ParseRawSessions(pair.Key, pair.Value)
		if err != nil {
			r.Error = err.Error()
			r.Version = version
			return r
		}
		r.Version = version
		r.Sessions = len(sessions)
		for _, s := range sessions {
			r.Messages += len(s.Messages)
		}
	case internal.LegacyHistoryKey:
		r.Kind = "history"
		messages, err := internal.ParseRawMessages(pair.Key, pair.Value)
		if err != nil {
			r.Error = err.Error()
			return r
		}
		r.Messages = len(messages)
	case internal.ActiveSessionKey, internal.ThemeKey:
		r.Kind = "string"
		r.Value = internal.ClampTitle(strings.Trim(string(pair.Value), `"`), 60)
	default:
		r.Kind = "unknown"
	}
	return r
}

func sampleSessions(pair internal.KeyValuePair, limit int) []sessionSample {
	sessions, _, err := internal.ParseRawSessions(pair.Key, pair.Value)
	if err != nil {
		return nil
	}
	var out []sessionSample
	for i, s := range sessions {
		if i >= limit {
			break
		}
		out = append(out, sessionSample{ID: s.ID, Title: s.Title, Messages: len(s.Messages)})
	}
	return out
}

func printReport(out io.Writer, report *inspectReport) {
	fmt.Fprintf(out, "📋 Database: %s\n", report.Database)
	if len(report.Tables) == 0 {
		fmt.Fprintln(out, "⚠️  No tables found in database")
		return
	}
	fmt.Fprintf(out, "📊 Found %d table(s)\n\n", len(report.Tables))

	for _, t := range report.Tables {
		fmt.Fprintf(out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
		fmt.Fprintf(out, "📦 Table: %s\n", t.Name)
		fmt.Fprintf(out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
		fmt.Fprintf(out, "📊 Rows: %d\n\n", t.Rows)
		fmt.Fprintf(out, "📐 Schema:\n")
		for _, col := range t.Columns {
			pk := ""
			if col.PrimaryKey {
				pk = " [PRIMARY KEY]"
			}
			notNull := ""
			if col.NotNull {
				notNull = " NOT NULL"
			}
			fmt.Fprintf(out, "  • %s: %s%s%s\n", col.Name, col.Type, notNull, pk)
		}
		fmt.Fprintln(out)
	}

	if len(report.Keys) > 0 {
		fmt.Fprintf(out, "🔑 Keys:\n")
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, k := range report.Keys {
			_, _ = fmt.Fprintf(w, "  %s\t%dB\t%s\n", k.Key, k.Size, describeReport(k))
		}
		_ = w.Flush()
		fmt.Fprintln(out)
	}

	if len(report.Sample) > 0 {
		fmt.Fprintf(out, "📄 Sample Sessions (first %d):\n", len(report.Sample))
		for _, s := range report.Sample {
			fmt.Fprintf(out, "  • %s  %s (%d message(s))\n", shortID(s.ID), s.Title, s.Messages)
		}
	}
}

func describeReport(k keyReport) string {
	if k.Error != "" {
		return "⚠️  " + k.Error
	}
	switch k.Kind {
	case "sessions":
		if k.Version == 0 {
			return fmt.Sprintf("%d session(s), %d message(s), unversioned", k.Sessions, k.Messages)
		}
		return fmt.Sprintf("%d session(s), %d message(s), version %d", k.Sessions, k.Messages, k.Version)
	case "history":
		return fmt.Sprintf("%d message(s), legacy history", k.Messages)
	case "string":
		return k.Value
	}
	return k.Kind
}

func getTables(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			continue
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func inspectTable(db *sql.DB, tableName string) (tableReport, error) {
	t := tableReport{Name: tableName}
	if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %q", tableName)).Scan(&t.Rows); err != nil {
		return t, fmt.Errorf("failed to get row count: %w", err)
	}
	columns, err := getTableSchema(db, tableName)
	if err != nil {
		return t, fmt.Errorf("failed to get schema: %w", err)
	}
	t.Columns = columns
	return t, nil
}

type ColumnInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	NotNull    bool   `json:"not_null"`
	PrimaryKey bool   `json:"primary_key"`
}

func getTableSchema(db *sql.DB, tableName string) ([]ColumnInfo, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%q)", tableName))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var columns []ColumnInfo
	for rows.Next() {
		var col ColumnInfo
		var cid int
		var notNull, pk int
		var defaultValue sql.NullString

		if err := rows.Scan(&cid, &col.Name, &col.Type, &notNull, &defaultValue, &pk); err != nil {
			continue
		}
		col.NotNull = notNull == 1
		col.PrimaryKey = pk == 1
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "text", "Output format (text, json)")
	inspectCmd.Flags().IntVar(&inspectSampleRows, "sample", 3, "Number of stored sessions to preview")
}
