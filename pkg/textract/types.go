package textract

// JobStatus is the state of an analysis job.
type JobStatus string

const (
	StatusRunning   JobStatus = "RUNNING"
	StatusSucceeded JobStatus = "SUCCEEDED"
	StatusFailed    JobStatus = "FAILED"
)

// Terminal reports whether the job will not change state again.
func (s JobStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Feature selects an analysis feature.
type Feature string

const (
	FeatureTables Feature = "TABLES"
	FeatureForms  Feature = "FORMS"
)

// ParseFeatures converts configured names into features, ignoring unknown names.
func ParseFeatures(names []string) []Feature {
	var out []Feature
	for _, n := range names {
		switch Feature(n) {
		case FeatureTables, FeatureForms:
			out = append(out, Feature(n))
		}
	}
	if len(out) == 0 {
		return []Feature{FeatureTables, FeatureForms}
	}
	return out
}

// BlockType is the node type of a block in the analysis graph.
type BlockType string

const (
	BlockPage        BlockType = "PAGE"
	BlockLine        BlockType = "LINE"
	BlockWord        BlockType = "WORD"
	BlockTable       BlockType = "TABLE"
	BlockCell        BlockType = "CELL"
	BlockKeyValueSet BlockType = "KEY_VALUE_SET"
)

// RelationshipType labels an edge between blocks.
type RelationshipType string

// RelationshipChild is the "contains" edge (table→cell, cell→word).
const RelationshipChild RelationshipType = "CHILD"

// Relationship is a typed edge from a block to other blocks by id.
type Relationship struct {
	Type RelationshipType
	IDs  []string
}

// Block is one node of the flat analysis graph.
type Block struct {
	ID            string
	Type          BlockType
	Text          string
	Page          int
	RowIndex      int
	ColumnIndex   int
	Relationships []Relationship
}

// ChildIDs returns the ids reachable through CHILD edges, in order.
func (b *Block) ChildIDs() []string {
	var ids []string
	for _, rel := range b.Relationships {
		if rel.Type == RelationshipChild {
			ids = append(ids, rel.IDs...)
		}
	}
	return ids
}

// Page is one page of a GetAnalysis response. NextToken is empty on the last page.
type Page struct {
	JobStatus     JobStatus
	StatusMessage string
	Blocks        []Block
	NextToken     string
}

// DocumentLocation points the service at a stored document.
type DocumentLocation struct {
	Bucket string
	Key    string
}
