// Package flatten turns the chunk tree of an analyzed sentence into flat
// span drafts ready to be committed as annotations.
package flatten

import (
	"strconv"

	"github.com/dgallion1/docannot/internal/analyzer"
)

// Kind is the annotation type of a draft.
type Kind string

const (
	KindToken    Kind = "Token"
	KindChunk    Kind = "Chunk"
	KindSentence Kind = "Sentence"
)

// Feature names shared by Token and Chunk drafts.
const (
	FeatStartSpan = "startSpan"
	FeatEndSpan   = "endSpan"
	FeatLemma     = "lemma"
	FeatPosition  = "position"
	FeatForm      = "formString"
	FeatPOS       = "POS"
	FeatPhForm    = "phForm"
	FeatNE        = "NE"
	FeatSense     = "sense"
	FeatDepLabel  = "depLabel"
	FeatDepHead   = "depHead"

	FeatLabel   = "label"
	FeatIsChunk = "isChunk"
)

// ChunkHeadKey names the feature linking a chunk id to its head token. It
// appears on the head token and on the chunk itself.
func ChunkHeadKey(id uint64) string { return "chunkHeadId_" + strconv.FormatUint(id, 10) }

// LabelKey names the feature carrying a chunk's label on its head token.
func LabelKey(id uint64) string { return "label_" + strconv.FormatUint(id, 10) }

// HeadWordKey names the chunk feature holding its head word form.
func HeadWordKey(id uint64) string { return "headWordString_" + strconv.FormatUint(id, 10) }

// Draft is an annotation in analyzer coordinates, not yet committed.
type Draft struct {
	LocalID  uint64
	Kind     Kind
	Span     analyzer.Span
	Features map[string]any
}
