package agent

// buildBranchPath composes the hierarchical branch label used to attribute
// events of concurrent child agents. If parent is empty it returns child;
// otherwise parent + "." + child. An empty child returns parent.
func buildBranchPath(parent, child string) string {
	if parent == "" {
		return child
	}
	if child == "" {
		return parent
	}
	return parent + "." + child
}
