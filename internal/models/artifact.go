package models

// Artifact is the output of the report/export builder: a named byte blob
// plus the number of data records it contains.
type Artifact struct {
	Name        string
	ContentType string
	Bytes       []byte
	RecordCount int
}
