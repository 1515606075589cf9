package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/solatis/stashkeeper/internal/types"
)

// ErrDocumentNotFound indicates no rule document has the requested name or id.
var ErrDocumentNotFound = errors.New("rule document not found")

// RuleDocument is a stored rule authoring document. The body is ingested
// exactly like a file from the rules directory.
type RuleDocument struct {
	DocumentID string `db:"document_id"`
	Name       string `db:"name"`
	Format     string `db:"format"`
	Body       string `db:"body"`
	Enabled    bool   `db:"enabled"`
	CreatedAt  string `db:"created_at"`
}

// Created parses CreatedAt.
func (d RuleDocument) Created() (time.Time, error) {
	return time.Parse(time.RFC3339, d.CreatedAt)
}

// Insert stores a new enabled document and returns it with its assigned id.
// Names are unique; inserting an existing name fails.
func (s *Store) Insert(ctx context.Context, name, format, body string) (RuleDocument, error) {
	doc := RuleDocument{
		DocumentID: string(types.NewRuleID()),
		Name:       name,
		Format:     format,
		Body:       body,
		Enabled:    true,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	_, err := s.db.ExecContext(ctx, s.stmts[queryInsertDocument],
		doc.DocumentID, doc.Name, doc.Format, doc.Body, doc.Enabled, doc.CreatedAt)
	if err != nil {
		return RuleDocument{}, fmt.Errorf("insert rule document %q: %w", name, err)
	}
	return doc, nil
}

// Get returns the document named name.
func (s *Store) Get(ctx context.Context, name string) (RuleDocument, error) {
	var doc RuleDocument
	if err := s.db.GetContext(ctx, &doc, s.stmts[queryGetDocument], name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RuleDocument{}, fmt.Errorf("%w: %s", ErrDocumentNotFound, name)
		}
		return RuleDocument{}, fmt.Errorf("get rule document %q: %w", name, err)
	}
	return doc, nil
}

// List returns every document ordered by name.
func (s *Store) List(ctx context.Context) ([]RuleDocument, error) {
	var docs []RuleDocument
	if err := s.db.SelectContext(ctx, &docs, s.stmts[queryListDocuments]); err != nil {
		return nil, fmt.Errorf("list rule documents: %w", err)
	}
	return docs, nil
}

// ListEnabled returns enabled documents ordered by name.
func (s *Store) ListEnabled(ctx context.Context) ([]RuleDocument, error) {
	var docs []RuleDocument
	if err := s.db.SelectContext(ctx, &docs, s.stmts[queryListEnabledDocuments], true); err != nil {
		return nil, fmt.Errorf("list enabled rule documents: %w", err)
	}
	return docs, nil
}

// Delete removes a document by document id when key parses as one, and by
// name otherwise.
func (s *Store) Delete(ctx context.Context, key string) error {
	query := s.stmts[queryDeleteDocument]
	if _, err := types.ParseRuleID(key); err == nil {
		query = s.stmts[queryDeleteDocumentByID]
	}

	res, err := s.db.ExecContext(ctx, query, key)
	if err != nil {
		return fmt.Errorf("delete rule document %q: %w", key, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, key)
	}
	return nil
}
