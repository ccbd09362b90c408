// Package mcp assembles the bounded model context handed to each agent. The
// Manager owns what a stage gets to see: its system instructions, the user's
// request and a budgeted window over the accumulated run state. Agents never
// read AgentState directly for prompting purposes.
package mcp

// Entry is one ordered piece of model context.
type Entry struct {
	// Role is "system", "user" or "assistant".
	Role string `json:"role"`
	// Content is the entry text.
	Content string `json:"content"`
	// Pinned entries survive truncation. Stage instructions and the
	// immediate user input are always pinned.
	Pinned bool `json:"pinned,omitempty"`
}

// Context is the ordered entry list for a single agent call.
type Context struct {
	Entries []Entry `json:"entries"`
}

// Size returns the total content length in runes across all entries.
func (c Context) Size() int {
	total := 0
	for _, e := range c.Entries {
		total += len([]rune(e.Content))
	}
	return total
}

// Instructions concatenates the system entries in order.
func (c Context) Instructions() string {
	var out string
	for _, e := range c.Entries {
		if e.Role != "system" {
			continue
		}
		if out != "" {
			out += "\n\n"
		}
		out += e.Content
	}
	return out
}
