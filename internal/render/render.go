// Package render formats pipeline state for the terminal: proposed actions,
// diffs, and session summaries. Presentation only; no business logic.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/ditloop/ditloop/internal/approval"
	"github.com/ditloop/ditloop/internal/domain"
	"github.com/ditloop/ditloop/internal/session"
)

// Renderer writes formatted output. With pretty off, output is plain text
// suitable for pipes and logs.
type Renderer struct {
	out    io.Writer
	pretty bool
}

// New creates a renderer. pretty enables color and glyphs.
func New(out io.Writer, pretty bool) *Renderer {
	return &Renderer{out: out, pretty: pretty}
}

// Printf writes formatted text.
func (r *Renderer) Printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

// Println writes formatted text with a trailing newline.
func (r *Renderer) Println(format string, args ...any) {
	fmt.Fprintf(r.out, format+"\n", args...)
}

// Action writes a one-line description of a proposed action.
func (r *Renderer) Action(index int, a domain.Action) {
	label := domain.Describe(a)
	if r.pretty {
		fmt.Fprintf(r.out, "  %s %s\n", color.CyanString("[%d]", index), label)
	} else {
		fmt.Fprintf(r.out, "  [%d] %s\n", index, label)
	}
}

// Prompt writes the approval prompt for one queued action, including a diff
// or content preview where the action carries one.
func (r *Renderer) Prompt(q approval.QueuedAction) {
	header := domain.Describe(q.Action)
	if r.pretty {
		fmt.Fprintf(r.out, "\n%s %s\n", color.YellowString("?"), color.New(color.Bold).Sprint(header))
	} else {
		fmt.Fprintf(r.out, "\n? %s\n", header)
	}

	switch a := q.Action.(type) {
	case domain.FileEdit:
		if a.Diff != "" {
			r.Diff(a.Diff)
		}
	case domain.FileCreate:
		r.preview(a.Content)
	}
}

// Diff writes a unified diff with +/- lines colored.
func (r *Renderer) Diff(diff string) {
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case !r.pretty:
			fmt.Fprintf(r.out, "  %s\n", line)
		case strings.HasPrefix(line, "+"):
			fmt.Fprintf(r.out, "  %s\n", color.GreenString(line))
		case strings.HasPrefix(line, "-"):
			fmt.Fprintf(r.out, "  %s\n", color.RedString(line))
		case strings.HasPrefix(line, "@@"):
			fmt.Fprintf(r.out, "  %s\n", color.CyanString(line))
		default:
			fmt.Fprintf(r.out, "  %s\n", line)
		}
	}
}

// preview shows the first lines of new file content.
func (r *Renderer) preview(content string) {
	lines := strings.Split(content, "\n")
	shown := lines
	if len(shown) > 8 {
		shown = shown[:8]
	}
	for _, line := range shown {
		if r.pretty {
			fmt.Fprintf(r.out, "  %s\n", color.HiBlackString(line))
		} else {
			fmt.Fprintf(r.out, "  %s\n", line)
		}
	}
	if len(lines) > 8 {
		fmt.Fprintf(r.out, "  ... (%d more lines)\n", len(lines)-8)
	}
}

// Result writes the outcome of one executed action.
func (r *Renderer) Result(label string, success bool, detail string) {
	mark := "ok"
	if r.pretty {
		mark = color.GreenString("✓")
		if !success {
			mark = color.RedString("✗")
		}
	} else if !success {
		mark = "FAIL"
	}
	fmt.Fprintf(r.out, "%s %s", mark, label)
	if detail != "" {
		fmt.Fprintf(r.out, ": %s", firstLine(detail))
	}
	fmt.Fprintln(r.out)
}

// Sessions writes a session listing, newest first.
func (r *Renderer) Sessions(sessions []*session.Session) {
	if len(sessions) == 0 {
		fmt.Fprintln(r.out, "No sessions found")
		return
	}

	for _, s := range sessions {
		status := string(s.Status)
		if r.pretty {
			switch s.Status {
			case session.StatusCompleted:
				status = color.GreenString(status)
			case session.StatusFailed:
				status = color.RedString(status)
			default:
				status = color.YellowString(status)
			}
		}
		fmt.Fprintf(r.out, "%s  %-9s  %s  %s\n",
			s.UpdatedAt.Format("2006-01-02 15:04"), status, shortID(s.ID), s.TaskID)
	}
}

// Session writes one session in detail: messages elided, actions listed
// with their outcomes.
func (r *Renderer) Session(s *session.Session) {
	fmt.Fprintf(r.out, "Session %s\n", s.ID)
	fmt.Fprintf(r.out, "  task:      %s\n", s.TaskID)
	fmt.Fprintf(r.out, "  workspace: %s\n", s.Workspace)
	fmt.Fprintf(r.out, "  status:    %s\n", s.Status)
	if s.Error != "" {
		fmt.Fprintf(r.out, "  error:     %s\n", firstLine(s.Error))
	}

	if len(s.Actions) == 0 {
		return
	}
	fmt.Fprintln(r.out, "  actions:")
	for _, ta := range s.Actions {
		fmt.Fprintf(r.out, "    %-9s %s\n", ta.Status, domain.Describe(ta.Action))
		if ta.Result != "" {
			fmt.Fprintf(r.out, "              %s\n", firstLine(ta.Result))
		}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
