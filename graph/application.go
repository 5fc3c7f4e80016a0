package graph

import (
	"fmt"
	"slices"
)

// ---------------------------------------------------------------------------
// Program definitions
// ---------------------------------------------------------------------------

// Class is the definition of a program class: its type, hierarchy and the
// members it declares.
type Class struct {
	Type        Type
	Super       Type
	Interfaces  []Type
	IsInterface bool
	Fields      []Field
	Methods     []Method
}

// HasField reports whether the class declares f.
func (c *Class) HasField(f Field) bool {
	return slices.Contains(c.Fields, f)
}

// HasMethod reports whether the class declares m.
func (c *Class) HasMethod(m Method) bool {
	return slices.Contains(c.Methods, m)
}

// DefinitionSupplier resolves a type to its definition, or nil when the
// type is not defined by the program.
type DefinitionSupplier interface {
	DefinitionFor(t Type) *Class
}

// Application is an immutable set of program classes.
type Application struct {
	classes map[Type]*Class
	order   []Type
}

// NewApplication returns an application with the given classes. Defining
// the same type twice is a programming error and panics.
func NewApplication(classes ...*Class) *Application {
	app := &Application{classes: make(map[Type]*Class, len(classes))}
	for _, c := range classes {
		if !c.Type.IsClass() {
			panic(fmt.Sprintf("graph.NewApplication: %s is not a class type", c.Type))
		}
		if _, dup := app.classes[c.Type]; dup {
			panic(fmt.Sprintf("graph.NewApplication: duplicate definition of %s", c.Type))
		}
		app.classes[c.Type] = c
		app.order = append(app.order, c.Type)
	}
	slices.SortFunc(app.order, Type.Compare)
	return app
}

// DefinitionFor returns the class defining t, or nil.
func (a *Application) DefinitionFor(t Type) *Class {
	return a.classes[t]
}

// Classes returns the classes ordered by type descriptor.
func (a *Application) Classes() []*Class {
	out := make([]*Class, len(a.order))
	for i, t := range a.order {
		out[i] = a.classes[t]
	}
	return out
}

// Len returns the number of classes.
func (a *Application) Len() int { return len(a.order) }

// Map returns a new application built by applying fn to every class. When
// several classes map onto the same type their members are merged; the
// class whose type did not change keeps its hierarchy, otherwise the first
// class in type order does.
func (a *Application) Map(fn func(*Class) *Class) *Application {
	merged := make(map[Type]*Class, len(a.order))
	survivors := make(map[Type]bool)
	var order []Type
	for _, t := range a.order {
		old := a.classes[t]
		c := fn(old)
		existing, ok := merged[c.Type]
		if !ok {
			merged[c.Type] = c
			survivors[c.Type] = old.Type == c.Type
			order = append(order, c.Type)
			continue
		}
		if old.Type == c.Type && !survivors[c.Type] {
			c.Fields = appendMissing(c.Fields, existing.Fields)
			c.Methods = appendMissing(c.Methods, existing.Methods)
			merged[c.Type] = c
			survivors[c.Type] = true
			continue
		}
		existing.Fields = appendMissing(existing.Fields, c.Fields)
		existing.Methods = appendMissing(existing.Methods, c.Methods)
	}
	slices.SortFunc(order, Type.Compare)
	return &Application{classes: merged, order: order}
}

func appendMissing[T comparable](dst, src []T) []T {
	for _, x := range src {
		if !slices.Contains(dst, x) {
			dst = append(dst, x)
		}
	}
	return dst
}
