package matching

import (
	"strings"

	"github.com/google/uuid"

	"github.com/Zereker/talentmatch/internal/domain"
)

// NewID returns "<type>_<32 hex chars>".
func NewID(typ domain.EntityType) string {
	return string(typ) + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewJobID returns a fresh job id.
func NewJobID() string {
	return NewID(domain.EntityJob)
}

// NewCandidateID returns a fresh candidate id.
func NewCandidateID() string {
	return NewID(domain.EntityCandidate)
}
