// Package aidf loads task definitions and project context for prompt
// construction. Tasks are markdown files with conventional sections; project
// context comes from an AGENTS.md at the workspace root.
package aidf

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Task describes one unit of work handed to the assistant. Only Title is
// required; empty sections are omitted from prompts.
type Task struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Goal             string   `json:"goal,omitempty"`
	Scope            string   `json:"scope,omitempty"`
	Requirements     []string `json:"requirements,omitempty"`
	DefinitionOfDone []string `json:"definitionOfDone,omitempty"`
}

// Context is supporting project knowledge injected into the system prompt.
type Context struct {
	AgentsContent string `json:"agentsContent,omitempty"`
}

// LoadContext reads AGENTS.md from the workspace root. A missing file is not
// an error; the context is simply empty.
func LoadContext(workspace string) Context {
	data, err := os.ReadFile(filepath.Join(workspace, "AGENTS.md"))
	if err != nil {
		return Context{}
	}
	return Context{AgentsContent: strings.TrimSpace(string(data))}
}

// LoadTask reads and parses a task markdown file. The task id is the file
// name without extension.
func LoadTask(path string) (Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Task{}, err
	}
	task := ParseTask(string(data))
	task.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return task, nil
}

// ParseTask extracts the conventional sections from task markdown. The first
// "# " heading is the title; "## Goal" and "## Scope" capture prose; "##
// Requirements" and "## Definition of Done" capture bullet lists.
func ParseTask(markdown string) Task {
	var task Task
	var section string
	var prose []string

	flush := func() {
		text := strings.TrimSpace(strings.Join(prose, "\n"))
		switch section {
		case "goal":
			task.Goal = text
		case "scope":
			task.Scope = text
		}
		prose = prose[:0]
	}

	scanner := bufio.NewScanner(strings.NewReader(markdown))
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "# ") && task.Title == "":
			task.Title = strings.TrimSpace(strings.TrimPrefix(line, "# "))

		case strings.HasPrefix(line, "## "):
			flush()
			heading := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, "## ")))
			switch heading {
			case "goal":
				section = "goal"
			case "scope":
				section = "scope"
			case "requirements":
				section = "requirements"
			case "definition of done", "dod":
				section = "dod"
			default:
				section = ""
			}

		case strings.HasPrefix(strings.TrimSpace(line), "- "):
			item := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "- "))
			switch section {
			case "requirements":
				task.Requirements = append(task.Requirements, item)
			case "dod":
				task.DefinitionOfDone = append(task.DefinitionOfDone, item)
			default:
				prose = append(prose, line)
			}

		default:
			if section == "goal" || section == "scope" {
				prose = append(prose, line)
			}
		}
	}
	flush()

	return task
}
