package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	title lipgloss.Style
	label lipgloss.Style
	ok    lipgloss.Style
	bad   lipgloss.Style
	dim   lipgloss.Style
}

func newStyles(re *lipgloss.Renderer) styles {
	return styles{
		title: re.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1),
		label: re.NewStyle().Foreground(lipgloss.Color("#87CEEB")),
		ok:    re.NewStyle().Foreground(lipgloss.Color("#90EE90")),
		bad:   re.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
		dim:   re.NewStyle().Foreground(lipgloss.Color("#666666")),
	}
}

// Text renders the report for a terminal. Colours follow the capabilities
// of w; pass io.Discard for plain text.
func (r *Report) Text(w io.Writer) string {
	st := newStyles(lipgloss.NewRenderer(w))
	var b strings.Builder

	b.WriteString(st.title.Render("NPDM " + r.Identity))
	b.WriteString("\n\n")

	field := func(name, value string) {
		fmt.Fprintf(&b, "%s %s\n", st.label.Render(fmt.Sprintf("%-14s", name)), value)
	}
	field("name", r.Header.Name)
	if r.Header.ProductCode != "" {
		field("product code", r.Header.ProductCode)
	}
	field("program", r.Program.ID)
	field("allowed ids", r.Program.Min+".."+r.Program.Max)
	field("production", fmt.Sprintf("%t", r.Program.Production))
	field("mmu flags", fmt.Sprintf("%#x (64-bit %t, address space %d)", r.Header.MMUFlags, r.Header.Is64Bit, r.Header.AddressSpace))
	field("main thread", fmt.Sprintf("priority %d, cpu %d, stack %#x", r.Header.MainThreadPriority, r.Header.DefaultCPU, r.Header.MainStackSize))
	field("digest", r.Digest)

	b.WriteString("\n")
	if r.Verdict == Accepted {
		flags := "none"
		if len(r.Flags) > 0 {
			flags = strings.Join(r.Flags, ", ")
		}
		b.WriteString(st.ok.Render("accepted"))
		b.WriteString(st.dim.Render(" flags: " + flags))
	} else {
		b.WriteString(st.bad.Render("rejected"))
		if v := r.Violation; v != nil {
			b.WriteString(st.dim.Render(fmt.Sprintf(" %s %s (%s) at %d", v.Category, v.Reason, v.Code, v.Index)))
		}
	}
	b.WriteString("\n")

	writeList := func(title string, entries []Entry, mark bool) {
		fmt.Fprintf(&b, "\n%s\n", st.label.Render(title))
		if len(entries) == 0 {
			b.WriteString(st.dim.Render("  (empty)"))
			b.WriteString("\n")
			return
		}
		for _, e := range entries {
			line := fmt.Sprintf("  %3d %-10s %-18s %s", e.Index, words(e.Words), e.Kind, e.Description)
			switch {
			case !mark:
				b.WriteString(line)
			case e.Permitted:
				b.WriteString(st.ok.Render("✓") + line)
			default:
				b.WriteString(st.bad.Render("✗") + line)
			}
			b.WriteString("\n")
		}
	}
	writeList("declared capabilities", r.Declared, true)
	writeList("restricted capabilities", r.Restricted, false)

	return b.String()
}

func words(ws []uint32) string {
	parts := make([]string, len(ws))
	for i, w := range ws {
		parts[i] = fmt.Sprintf("%08x", w)
	}
	return strings.Join(parts, ":")
}
