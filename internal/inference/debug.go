package inference

import (
	"fmt"
	"strings"
)

// DebugPrinter renders constraints and variable states of one run.
type DebugPrinter struct {
	ctx *Context
}

func NewDebugPrinter(ctx *Context) *DebugPrinter {
	return &DebugPrinter{ctx: ctx}
}

func (p *DebugPrinter) Constraint(c *Constraint) string { return c.String() }

func (p *DebugPrinter) Constraints(cs []*Constraint) string {
	lines := make([]string, 0, len(cs))
	for _, c := range cs {
		lines = append(lines, c.String())
	}
	return strings.Join(lines, "\n")
}

// Variables lists "T0 := LOWER" lines; unfixed variables show UNKNOWN.
func (p *DebugPrinter) Variables() string {
	if p.ctx == nil {
		return ""
	}
	lines := make([]string, 0, len(p.ctx.Variables))
	for _, v := range p.ctx.Variables {
		lines = append(lines, fmt.Sprintf("%s := %s", v, v.State()))
	}
	return strings.Join(lines, "\n")
}

func (p *DebugPrinter) BoundType(b *BoundType) string { return b.String() }

// Positions labels each variable with the source position it came from.
func (p *DebugPrinter) Positions() string {
	if p.ctx == nil {
		return ""
	}
	var sb strings.Builder
	for _, v := range p.ctx.Variables {
		switch {
		case v.TypeRef != nil:
			fmt.Fprintf(&sb, "%s %s /*%s*/\n", v.TypeRef.Pos(), v.TypeRef, v)
		case v.Type != nil:
			fmt.Fprintf(&sb, "<synthetic> %s /*%s*/\n", v.Type, v)
		}
	}
	return sb.String()
}
