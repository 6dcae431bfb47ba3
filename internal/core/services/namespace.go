package services

import (
	"strings"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/logger"
)

// namespaceWildcard grants visibility of every entry.
const namespaceWildcard = "*"

// NamespaceFilter decides whether index entries are visible to a caller
// holding a list of allowed namespaces.
//
// Matching is case-insensitive and exact. An empty list, or a list whose
// entries are all blank, places no restriction. A list containing "*"
// admits every entry, including entries without a namespace.
type NamespaceFilter struct {
	allowed    map[string]struct{}
	restricted bool
}

// NewNamespaceFilter builds a filter from the caller's allowed namespaces.
func NewNamespaceFilter(allowed []string) *NamespaceFilter {
	f := &NamespaceFilter{allowed: make(map[string]struct{}, len(allowed))}
	wildcard := false
	for _, ns := range allowed {
		ns = strings.ToLower(strings.TrimSpace(ns))
		if ns == "" {
			continue
		}
		if ns == namespaceWildcard {
			wildcard = true
			continue
		}
		f.allowed[ns] = struct{}{}
	}
	f.restricted = !wildcard && len(f.allowed) > 0
	return f
}

// Restricted reports whether the filter can hide any entry.
func (f *NamespaceFilter) Restricted() bool {
	return f.restricted
}

// Visible reports whether an entry tagged with namespace may be returned.
// A nil namespace is only visible when the filter is unrestricted.
func (f *NamespaceFilter) Visible(namespace *string) bool {
	if !f.restricted {
		return true
	}
	if namespace == nil {
		return false
	}
	_, ok := f.allowed[strings.ToLower(*namespace)]
	return ok
}

// EntryFilter composes the namespace rule with the optional document
// restriction of filter. It returns nil when nothing is restricted.
func EntryFilter(filter domain.SearchFilter) driven.EntryFilter {
	ns := NewNamespaceFilter(filter.Namespaces)

	var docID int64
	if filter.DocumentID != nil && *filter.DocumentID > 0 {
		docID = *filter.DocumentID
	}

	if !ns.Restricted() && docID == 0 {
		return nil
	}

	return func(id int64, meta *driven.EntryMetadata) bool {
		if docID != 0 && meta.DocumentID != docID {
			return false
		}
		if !ns.Restricted() {
			return true
		}
		if meta.Namespace == nil {
			logger.Warn("namespace metadata missing",
				"embedding_id", id,
				"document_id", meta.DocumentID)
			return false
		}
		return ns.Visible(meta.Namespace)
	}
}
