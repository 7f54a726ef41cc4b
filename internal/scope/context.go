package scope

import "path/filepath"

// Context tracks the current scope and working directory during a script
// traversal. Push/pop pairs are strictly balanced across block boundaries;
// an unbalanced pop is a programming error and panics.
type Context struct {
	root   *Scope
	scopes []*Scope
	cwds   []string
}

// NewContext returns a context rooted at a fresh scope tree with the given
// working directory.
func NewContext(cwd string) *Context {
	root := NewRoot()
	return &Context{
		root:   root,
		scopes: []*Scope{root},
		cwds:   []string{cwd},
	}
}

// Root returns the scope tree root.
func (c *Context) Root() *Scope {
	return c.root
}

// Scope returns the current scope.
func (c *Context) Scope() *Scope {
	return c.scopes[len(c.scopes)-1]
}

// PushScope enters the named child of the current scope, creating it if
// absent, and returns it.
func (c *Context) PushScope(name string) *Scope {
	s := c.Scope().GetOrCreate(name)
	c.scopes = append(c.scopes, s)
	return s
}

// PushScopeAt enters an existing scope directly.
func (c *Context) PushScopeAt(s *Scope) {
	c.scopes = append(c.scopes, s)
}

// PopScope leaves the current scope.
func (c *Context) PopScope() {
	if len(c.scopes) <= 1 {
		panic("scope: unbalanced PopScope")
	}
	c.scopes = c.scopes[:len(c.scopes)-1]
}

// Value resolves a dotted key against the current scope, falling back to a
// root-anchored interpretation. Returns nil when no declaration exists.
func (c *Context) Value(key string) *ScopeValue {
	if v := c.Scope().Value(key); v != nil {
		return v
	}
	if v := c.root.Value(key); v != nil {
		return v
	}
	return nil
}

// Cwd returns the current working directory.
func (c *Context) Cwd() string {
	return c.cwds[len(c.cwds)-1]
}

// PushCwd enters a working directory; relative paths resolve against the
// current one.
func (c *Context) PushCwd(dir string) {
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(c.Cwd(), dir)
	}
	c.cwds = append(c.cwds, dir)
}

// PopCwd leaves the current working directory.
func (c *Context) PopCwd() {
	if len(c.cwds) <= 1 {
		panic("scope: unbalanced PopCwd")
	}
	c.cwds = c.cwds[:len(c.cwds)-1]
}
