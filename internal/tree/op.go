package tree

type opKind int

const (
	opSet opKind = iota
	opUpdate
	opRemove
)

// Op is one write in a multi-path Commit
type Op struct {
	kind   opKind
	path   string
	value  interface{}
	fields map[string]interface{}
}

// SetOp replaces the node at path
func SetOp(path string, value interface{}) Op {
	return Op{kind: opSet, path: path, value: value}
}

// UpdateOp merges fields into the node at path
func UpdateOp(path string, fields map[string]interface{}) Op {
	return Op{kind: opUpdate, path: path, fields: fields}
}

// RemoveOp deletes the node at path and its subtree
func RemoveOp(path string) Op {
	return Op{kind: opRemove, path: path}
}

// Path returns the path the op writes
func (o Op) Path() string {
	return o.path
}
