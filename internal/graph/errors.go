package graph

import (
	"errors"
	"fmt"
)

// Lookup and search outcomes. None of these abort a run: the annotator
// counts them and moves on to the next commit.
var (
	ErrIdentifierTooShort  = errors.New("identifier too short")
	ErrIdentifierNotFound  = errors.New("identifier not found")
	ErrIdentifierAmbiguous = fmt.Errorf("ambiguous prefix: %w", ErrIdentifierNotFound)
	ErrNoPath              = errors.New("no path to ancestor")
	ErrSearchCapped        = fmt.Errorf("search limit reached: %w", ErrNoPath)
	ErrSelfReference       = fmt.Errorf("commit references itself: %w", ErrNoPath)
	ErrIndexSealed         = errors.New("index is sealed")
)
