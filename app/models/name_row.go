package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NameRow is one input row as handed over by the I/O layer or the document store
type NameRow struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	WikidataID  string             `bson:"wikidata_id" json:"wikidata_id"`               // Entity id, e.g. Q42
	Type        string             `bson:"type,omitempty" json:"type,omitempty"`         // PER, LOC, ORG or empty
	Alias       string             `bson:"alias" json:"alias"`                           // Transliteration text
	English     string             `bson:"eng" json:"eng"`                               // English reference name
	Language    string             `bson:"language" json:"language"`                     // Language code
	IsLatin     *bool              `bson:"is_latin,omitempty" json:"is_latin,omitempty"` // Precomputed Latin-script flag
}

// Entity type constants
const (
	EntityPER  = "PER"
	EntityLOC  = "LOC"
	EntityORG  = "ORG"
	EntityNone = ""
)

// DefaultEntityPrefix is the prefix of entity ids (property ids start with P)
const DefaultEntityPrefix = "Q"

// IsValidEntityType reports whether t is PER, LOC, ORG or empty
func IsValidEntityType(t string) bool {
	switch t {
	case EntityPER, EntityLOC, EntityORG, EntityNone:
		return true
	}
	return false
}

// HasEntityPrefix reports whether the id is an entity id
func (r *NameRow) HasEntityPrefix(prefix string) bool {
	if prefix == "" {
		prefix = DefaultEntityPrefix
	}
	return strings.HasPrefix(r.WikidataID, prefix)
}

// IsLatinScript reports the precomputed flag, false when absent
func (r *NameRow) IsLatinScript() bool {
	return r.IsLatin != nil && *r.IsLatin
}

// NameResult is a tagged/normalized name as persisted to the document store
type NameResult struct {
	WikidataID      string    `bson:"wikidata_id" json:"wikidata_id"`
	Language        string    `bson:"language" json:"language"`
	Type            string    `bson:"type,omitempty" json:"type,omitempty"`
	Alias           string    `bson:"alias" json:"alias"`
	OriginalText    string    `bson:"original_text" json:"original_text"`
	IsUnchanged     bool      `bson:"is_unchanged" json:"is_unchanged"`
	MostCommonBlock string    `bson:"most_common_unicode_block" json:"most_common_unicode_block"`
	Anomalous       string    `bson:"anomalous" json:"anomalous"` // anomalous, not_anomalous, abstain
	CrossingLinks   int       `bson:"crossing_links,omitempty" json:"crossing_links,omitempty"`
	RunID           string    `bson:"run_id" json:"run_id"` // Run that produced this result
	UpdatedAt       time.Time `bson:"updated_at" json:"updated_at"`
}
