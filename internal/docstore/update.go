package docstore

type operationKind int

const (
	opSet operationKind = iota
	opUnset
	opAddToSet
	opPull
)

// Operation is one field mutation of an Update.
type Operation struct {
	kind  operationKind
	path  string
	value any
}

// Set assigns value at path, creating missing parent objects.
func Set(path string, value any) Operation {
	return Operation{kind: opSet, path: path, value: value}
}

func Unset(path string) Operation {
	return Operation{kind: opUnset, path: path}
}

// AddToSet appends value to the array at path unless an equal element is
// already present. A missing array is created.
func AddToSet(path string, value any) Operation {
	return Operation{kind: opAddToSet, path: path, value: value}
}

// Pull removes every element equal to value from the array at path.
func Pull(path string, value any) Operation {
	return Operation{kind: opPull, path: path, value: value}
}

// Update is an ordered list of operations applied atomically to one document.
type Update struct {
	ops []Operation
}

func Apply(ops ...Operation) Update {
	return Update{ops: append([]Operation(nil), ops...)}
}

func (u Update) IsEmpty() bool {
	return len(u.ops) == 0
}
