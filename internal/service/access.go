package service

import (
	"context"

	"go.uber.org/zap"

	"tablestore/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// AccessGate: ownership check in front of every entry point
// ─────────────────────────────────────────────────────────────

// AccessGate decides whether a user may touch a database. A database is
// accessible when it is standalone or when its owning document belongs to
// the user. Every failure, including lookup errors, denies.
type AccessGate struct {
	registry domain.RegistryStore
	docs     domain.DocumentStore
	log      *zap.Logger
}

// NewAccessGate creates an AccessGate.
func NewAccessGate(registry domain.RegistryStore, docs domain.DocumentStore, logger *zap.Logger) *AccessGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessGate{registry: registry, docs: docs, log: logger}
}

// Authorize returns the database when userID may access it. The record is
// returned even if it sits in the trash; callers decide what that means.
func (g *AccessGate) Authorize(ctx context.Context, userID, databaseID string) (*domain.Database, error) {
	if userID == "" {
		return nil, domain.AccessDenied("no user identity supplied")
	}
	db, err := g.registry.GetDatabase(ctx, databaseID)
	if err != nil {
		g.log.Debug("access lookup failed", zap.String("databaseId", databaseID), zap.Error(err))
		return nil, domain.AccessDenied("access denied to database %s", databaseID)
	}
	if !g.allowed(ctx, userID, db) {
		return nil, domain.AccessDenied("access denied to database %s", databaseID)
	}
	return db, nil
}

// AuthorizeLive is Authorize plus a NotFound for databases in the trash.
func (g *AccessGate) AuthorizeLive(ctx context.Context, userID, databaseID string) (*domain.Database, error) {
	db, err := g.Authorize(ctx, userID, databaseID)
	if err != nil {
		return nil, err
	}
	if db.Deleted() {
		return nil, domain.NotFound("database not found: %s", databaseID)
	}
	return db, nil
}

// AuthorizeDocument checks that userID owns the document.
func (g *AccessGate) AuthorizeDocument(ctx context.Context, userID, documentID string) (*domain.Document, error) {
	if userID == "" {
		return nil, domain.AccessDenied("no user identity supplied")
	}
	doc, err := g.docs.GetDocument(ctx, documentID)
	if err != nil || doc.OwnerUserID != userID {
		return nil, domain.AccessDenied("access denied to document %s", documentID)
	}
	return doc, nil
}

// Allowed reports whether userID may access db without re-reading it.
func (g *AccessGate) Allowed(ctx context.Context, userID string, db *domain.Database) bool {
	return userID != "" && g.allowed(ctx, userID, db)
}

func (g *AccessGate) allowed(ctx context.Context, userID string, db *domain.Database) bool {
	if db.OwnerDocumentID == "" {
		return true
	}
	doc, err := g.docs.GetDocument(ctx, db.OwnerDocumentID)
	if err != nil {
		g.log.Debug("owner document lookup failed",
			zap.String("documentId", db.OwnerDocumentID), zap.Error(err))
		return false
	}
	return doc.OwnerUserID == userID
}
