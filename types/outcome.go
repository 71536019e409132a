package types

// UnitKind names the level of the catalog hierarchy a unit of work belongs to.
type UnitKind string

const (
	UnitCollection UnitKind = "collection"
	UnitPage       UnitKind = "page"
	UnitItem       UnitKind = "item"
	UnitAsset      UnitKind = "asset"
)

// Status is the result of one unit of work.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusSkipped   Status = "skipped"
)

// Outcome records what happened to one unit of work. Err is set for skipped
// units and names the cause.
type Outcome struct {
	Kind   UnitKind
	ID     string
	Status Status
	Path   string
	Err    error
}

// Done returns a completed outcome.
func Done(kind UnitKind, id string) Outcome {
	return Outcome{Kind: kind, ID: id, Status: StatusCompleted}
}

// Skip returns a skipped outcome carrying its cause.
func Skip(kind UnitKind, id string, err error) Outcome {
	return Outcome{Kind: kind, ID: id, Status: StatusSkipped, Err: err}
}

// IsSkipped reports whether the unit was skipped.
func (o Outcome) IsSkipped() bool {
	return o.Status == StatusSkipped
}
