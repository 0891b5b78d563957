// Package parser extracts structured actions from AI tool invocations and
// markdown text. Parsing never fails: malformed or unrecognized input yields
// no action so a bad tool call cannot abort an in-flight stream.
package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ditloop/ditloop/internal/domain"
)

// codeBlockRe matches fenced code blocks with an optional language tag and
// an optional "// file: <path>" marker on the first line of the fence body.
var codeBlockRe = regexp.MustCompile("(?s)```(\\w+)?[ \t]*\n(?://\\s*file:\\s*(.+?)\n)?(.*?)```")

// ParseToolUse converts one tool invocation into an Action. Unknown tool
// names and arguments that fail validation return nil.
func ParseToolUse(toolUse domain.ToolUse) domain.Action {
	args := toolUse.Arguments

	switch toolUse.Name {
	case "create_file", "write_file":
		return validated(domain.FileCreate{
			Path:    stringArg(args, "path"),
			Content: stringArg(args, "content"),
		})

	case "edit_file", "replace_in_file":
		return validated(domain.FileEdit{
			Path:       stringArg(args, "path"),
			OldContent: stringArg(args, "old_content", "oldContent"),
			NewContent: stringArg(args, "new_content", "newContent"),
		})

	case "run_command", "execute_command", "shell":
		return validated(domain.ShellCommand{
			Command: stringArg(args, "command", "cmd"),
			Cwd:     stringArg(args, "cwd"),
		})

	case "git", "git_operation":
		return validated(domain.GitOperation{
			Operation: domain.GitOp(stringArg(args, "operation")),
			Args:      mapArg(args, "args"),
		})

	default:
		return nil
	}
}

// ParseMarkdown scans fenced code blocks in order of appearance. Blocks
// tagged bash/sh/shell become shell commands; blocks carrying a
// "// file: <path>" marker become file creations. Everything else is
// ignored.
func ParseMarkdown(text string) []domain.Action {
	var actions []domain.Action

	for _, m := range codeBlockRe.FindAllStringSubmatch(text, -1) {
		lang, filePath, content := m[1], m[2], m[3]

		switch lang {
		case "bash", "sh", "shell":
			if trimmed := strings.TrimSpace(content); trimmed != "" {
				actions = append(actions, domain.ShellCommand{Command: trimmed})
			}
		default:
			if filePath != "" {
				actions = append(actions, domain.FileCreate{
					Path:    strings.TrimSpace(filePath),
					Content: strings.TrimRight(content, "\n"),
				})
			}
		}
	}

	return actions
}

// GenerateDiff produces an approximate unified diff for human display. It
// walks both texts line-by-line by index; a contiguous run of differing
// lines becomes one hunk. Line alignment beyond a single contiguous edit
// degrades, so the output is not suitable for patching.
func GenerateDiff(oldContent, newContent, filePath string) string {
	oldLines := strings.Split(oldContent, "\n")
	newLines := strings.Split(newContent, "\n")

	lines := []string{
		"--- a/" + filePath,
		"+++ b/" + filePath,
	}

	maxLen := len(oldLines)
	if len(newLines) > maxLen {
		maxLen = len(newLines)
	}

	hunkStart := -1
	var hunkLines []string

	for i := 0; i < maxLen; i++ {
		var oldLine, newLine *string
		if i < len(oldLines) {
			oldLine = &oldLines[i]
		}
		if i < len(newLines) {
			newLine = &newLines[i]
		}

		if !equalLine(oldLine, newLine) {
			if hunkStart == -1 {
				hunkStart = i
			}
			if oldLine != nil {
				hunkLines = append(hunkLines, "-"+*oldLine)
			}
			if newLine != nil {
				hunkLines = append(hunkLines, "+"+*newLine)
			}
		} else if len(hunkLines) > 0 {
			lines = append(lines, fmt.Sprintf("@@ -%d +%d @@", hunkStart+1, hunkStart+1))
			lines = append(lines, hunkLines...)
			if oldLine != nil {
				lines = append(lines, " "+*oldLine)
			}
			hunkLines = nil
			hunkStart = -1
		}
	}

	if len(hunkLines) > 0 {
		lines = append(lines, fmt.Sprintf("@@ -%d +%d @@", hunkStart+1, hunkStart+1))
		lines = append(lines, hunkLines...)
	}

	return strings.Join(lines, "\n")
}

func equalLine(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// validated returns the action when it is well-formed, nil otherwise.
func validated(a domain.Action) domain.Action {
	if err := a.Validate(); err != nil {
		return nil
	}
	return a
}

// stringArg returns the first present string value among keys.
func stringArg(args map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := args[k].(string); ok {
			return v
		}
	}
	return ""
}

// mapArg returns the map value for key, or an empty map.
func mapArg(args map[string]any, key string) map[string]any {
	if v, ok := args[key].(map[string]any); ok {
		return v
	}
	return map[string]any{}
}
