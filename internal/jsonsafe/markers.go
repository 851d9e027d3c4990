package jsonsafe

// Function stands in for a callable script value.
type Function struct {
	Name string
}

// Instance stands in for an object that is not plain: a class instance,
// Date, Map, RegExp and the like.
type Instance struct {
	Class string
}

// Symbol stands in for a script symbol.
type Symbol struct {
	Description string
}

// Undefined is the script undefined value.
var Undefined = undefined{}

type undefined struct{}
