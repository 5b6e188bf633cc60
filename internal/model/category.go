package model

// Category represents an entry in the PocketSmith category catalog. The
// catalog is flattened from PocketSmith's parent/child tree and passed into
// the LLM prompt-building step.
type Category struct {
	Title  string
	Parent string
	ID     int
}

// FullTitle returns "Parent > Title" for nested categories, or the bare
// title for top-level ones.
func (c Category) FullTitle() string {
	if c.Parent == "" {
		return c.Title
	}
	return c.Parent + " > " + c.Title
}
