// Package embedding turns text into vectors for similarity search.
package embedding

import "echomind/internal/domain"

// Embedder converts free text into a numeric vector representation.
type Embedder = domain.Embedder
