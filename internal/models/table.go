package models

import "time"

// Column is a single named column in a catalog table schema
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Column types used by schema derivation. JSON scalars map onto these;
// objects and arrays are serialized and stored as strings.
const (
	ColumnTypeString  = "string"
	ColumnTypeDouble  = "double"
	ColumnTypeBoolean = "boolean"
)

// Hive storage descriptor constants for curated external tables
const (
	TableInputFormat    = "org.apache.hadoop.mapred.TextInputFormat"
	TableOutputFormat   = "org.apache.hadoop.hive.ql.io.HiveIgnoreKeyTextOutputFormat"
	TableSerdeLibrary   = "org.apache.hadoop.hive.serde2.lazy.LazySimpleSerDe"
	TableTypeExternal   = "EXTERNAL_TABLE"
	TableClassification = "parquet"
	TableCompression    = "snappy"
)

// TableDescription is the full catalog definition for one curated table
type TableDescription struct {
	Database      string            `json:"database"`
	Name          string            `json:"name"`
	Columns       []Column          `json:"columns"`        // Partition keys are excluded here
	PartitionKeys []Column          `json:"partition_keys"` // Tenant column plus export timestamp
	Location      string            `json:"location"`
	InputFormat   string            `json:"input_format"`
	OutputFormat  string            `json:"output_format"`
	SerdeLibrary  string            `json:"serde_library"`
	TableType     string            `json:"table_type"`
	Parameters    map[string]string `json:"parameters"`
	CreatedAt     time.Time         `json:"created_at,omitempty"`
	UpdatedAt     time.Time         `json:"updated_at,omitempty"`
}

// TableUpdate is the reduced payload sent when a table already exists.
// Storage format fields are deliberately absent: an update must not
// clobber the formats recorded at creation time.
type TableUpdate struct {
	Columns       []Column `json:"columns"`
	PartitionKeys []Column `json:"partition_keys"`
	Location      string   `json:"location"`
}

// NewTableDescription builds a TableDescription with the standard external
// table storage descriptor applied
func NewTableDescription(database, name string, columns, partitionKeys []Column, location string) TableDescription {
	return TableDescription{
		Database:      database,
		Name:          name,
		Columns:       columns,
		PartitionKeys: partitionKeys,
		Location:      location,
		InputFormat:   TableInputFormat,
		OutputFormat:  TableOutputFormat,
		SerdeLibrary:  TableSerdeLibrary,
		TableType:     TableTypeExternal,
		Parameters: map[string]string{
			"classification":  TableClassification,
			"compressionType": TableCompression,
			"typeOfData":      "file",
		},
	}
}

// Update extracts the reduced update payload from a full description
func (t TableDescription) Update() TableUpdate {
	return TableUpdate{
		Columns:       t.Columns,
		PartitionKeys: t.PartitionKeys,
		Location:      t.Location,
	}
}

// HasColumn checks whether the table schema contains the named column
func (t TableDescription) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}
