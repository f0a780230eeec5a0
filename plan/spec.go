package plan

// Document is the YAML layout of a plan file.
type Document struct {
	Models     map[string]ModelSpec `yaml:"models"`
	Operations []OperationSpec      `yaml:"operations"`
}

type ModelSpec struct {
	Table          string      `yaml:"table"`
	Fields         []FieldSpec `yaml:"fields"`
	PrimaryKey     []string    `yaml:"primary_key"`
	UniqueTogether [][]string  `yaml:"unique_together"`
	IndexTogether  [][]string  `yaml:"index_together"`
	Indexes        []IndexSpec `yaml:"indexes"`
	Tablespace     string      `yaml:"tablespace"`
}

type FieldSpec struct {
	Name          string `yaml:"name"`
	Column        string `yaml:"column"`
	Type          string `yaml:"type"`
	DBType        string `yaml:"db_type"`
	MaxLength     int    `yaml:"max_length"`
	MaxDigits     int    `yaml:"max_digits"`
	DecimalPlaces int    `yaml:"decimal_places"`
	Null          bool   `yaml:"null"`
	Blank         bool   `yaml:"blank"`
	Unique        bool   `yaml:"unique"`
	PrimaryKey    bool   `yaml:"primary_key"`
	DBIndex       bool   `yaml:"db_index"`
	Default       any    `yaml:"default"`
	// DefaultFunc names a default evaluated for every statement: now, uuid4.
	DefaultFunc  string `yaml:"default_func"`
	Check        string `yaml:"check"`
	DBCollation  string `yaml:"db_collation"`
	DBTablespace string `yaml:"db_tablespace"`

	References *ReferenceSpec  `yaml:"references"`
	ManyToMany *ManyToManySpec `yaml:"many_to_many"`
	Geometry   *GeometrySpec   `yaml:"geometry"`
}

type ReferenceSpec struct {
	Model string `yaml:"model"`
	// Field defaults to the primary key of Model.
	Field string `yaml:"field"`
}

type ManyToManySpec struct {
	To string `yaml:"to"`
	// Through names an explicit junction model. Without it one is created.
	Through string `yaml:"through"`
}

type GeometrySpec struct {
	GeomType     string `yaml:"geom_type"`
	SRID         int    `yaml:"srid"`
	Dim          int    `yaml:"dim"`
	SpatialIndex bool   `yaml:"spatial_index"`
}

type IndexSpec struct {
	Name         string   `yaml:"name"`
	Fields       []string `yaml:"fields"`
	Opclasses    []string `yaml:"opclasses"`
	Condition    string   `yaml:"condition"`
	Tablespace   string   `yaml:"tablespace"`
	Concurrently bool     `yaml:"concurrently"`
}

// OperationSpec holds exactly one operation.
type OperationSpec struct {
	CreateModel         string           `yaml:"create_model"`
	CreateModels        []string         `yaml:"create_models"`
	DeleteModel         string           `yaml:"delete_model"`
	AddField            *AddFieldSpec    `yaml:"add_field"`
	AlterField          *AlterFieldSpec  `yaml:"alter_field"`
	RemoveField         *RemoveFieldSpec `yaml:"remove_field"`
	AlterUniqueTogether *TogetherSpec    `yaml:"alter_unique_together"`
	AlterIndexTogether  *TogetherSpec    `yaml:"alter_index_together"`
	AlterDBTable        *RenameSpec      `yaml:"alter_db_table"`
	AlterDBTablespace   *RenameSpec      `yaml:"alter_db_tablespace"`
	AddIndex            *AddIndexSpec    `yaml:"add_index"`
	RemoveIndex         *RemoveIndexSpec `yaml:"remove_index"`
	ResetSequences      []string         `yaml:"reset_sequences"`
}

type AddFieldSpec struct {
	Model string    `yaml:"model"`
	Field FieldSpec `yaml:"field"`
}

type AlterFieldSpec struct {
	Model string `yaml:"model"`
	// Field names the current field. It defaults to the name of Old, then New.
	Field  string     `yaml:"field"`
	Old    *FieldSpec `yaml:"old"`
	New    FieldSpec  `yaml:"new"`
	Strict bool       `yaml:"strict"`
}

type RemoveFieldSpec struct {
	Model string `yaml:"model"`
	Field string `yaml:"field"`
}

type TogetherSpec struct {
	Model  string     `yaml:"model"`
	Old    [][]string `yaml:"old"`
	New    [][]string `yaml:"new"`
	Strict bool       `yaml:"strict"`
}

type RenameSpec struct {
	Model string  `yaml:"model"`
	Old   *string `yaml:"old"`
	New   string  `yaml:"new"`
}

type AddIndexSpec struct {
	Model string    `yaml:"model"`
	Index IndexSpec `yaml:"index"`
}

type RemoveIndexSpec struct {
	Model string `yaml:"model"`
	Index string `yaml:"index"`
}
