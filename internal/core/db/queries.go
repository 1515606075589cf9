package db

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/qustavo/dotsql"
)

//go:embed queries/*.sql
var queriesFS embed.FS

// Named queries in queries/rule_documents.sql.
const (
	queryInsertDocument       = "insert-rule-document"
	queryListDocuments        = "list-rule-documents"
	queryListEnabledDocuments = "list-enabled-rule-documents"
	queryGetDocument          = "get-rule-document"
	queryDeleteDocument       = "delete-rule-document"
	queryDeleteDocumentByID   = "delete-rule-document-by-id"
)

var storeQueries = []string{
	queryInsertDocument,
	queryListDocuments,
	queryListEnabledDocuments,
	queryGetDocument,
	queryDeleteDocument,
	queryDeleteDocumentByID,
}

// statements maps query names to SQL rebound for one driver.
type statements map[string]string

// loadStatements parses the embedded query files with dotsql and rebinds
// every query the store needs. A missing query fails here, not on first use.
func loadStatements(conn *sqlx.DB) (statements, error) {
	files, err := fs.Glob(queriesFS, "queries/*.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to list query files: %w", err)
	}

	var combined strings.Builder
	for _, name := range files {
		content, err := queriesFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		combined.Write(content)
		combined.WriteByte('\n')
	}

	dot, err := dotsql.LoadFromString(combined.String())
	if err != nil {
		return nil, fmt.Errorf("failed to parse queries: %w", err)
	}

	stmts := make(statements, len(storeQueries))
	for _, name := range storeQueries {
		raw, err := dot.Raw(name)
		if err != nil {
			return nil, fmt.Errorf("query %s not found: %w", name, err)
		}
		stmts[name] = conn.Rebind(raw)
	}
	return stmts, nil
}
