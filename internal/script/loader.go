// Package script drives execution of archetype script trees: the loader
// contract for pulling in referenced scripts, input resolvers, and the
// depth-first invoker shared by compilation passes and variation
// normalization.
package script

import (
	"strings"

	"github.com/oxhq/archc/internal/node"
)

// Loader resolves a script reference to its parsed tree. Parsing itself is
// an external collaborator; the compiler only consumes well-formed trees.
// Implementations may cache; the inline pass disables caching to get a
// unique subtree instance per call site.
type Loader interface {
	// Load parses the script at the path, resolved by the implementation.
	// When cache is false the returned tree must be a fresh instance.
	Load(path string, cache bool) (*node.Node, error)
}

// IsURL reports whether a script reference is URL-form. URL-form sources
// are skipped during compilation and resolved at instantiation time.
func IsURL(ref string) bool {
	return strings.Contains(ref, "://")
}

// FindMethod locates a method declaration by name in a script tree. Methods
// may sit directly under the root or inside a methods container.
func FindMethod(root *node.Node, name string) *node.Node {
	var found *node.Node
	root.Traverse(func(n *node.Node) {
		if found == nil && n.Kind() == node.KindMethod && n.Attr("name") == name {
			found = n
		}
	})
	return found
}
