package approval

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ditloop/ditloop/internal/domain"
)

// Decision is a policy verdict for one action.
type Decision string

const (
	Allow Decision = "allow"
	Deny  Decision = "deny"
	Ask   Decision = "ask"
)

// Rule binds a pattern to a verdict. File rules use doublestar glob syntax
// against the action's path ("src/**/*.go"); command rules match shell
// commands by prefix ("git *" matches any git invocation, "git" matches
// exactly "git"); git rules name the operation ("git:push").
type Rule struct {
	Pattern  string
	Decision Decision
}

// Policy evaluates actions against ordered rule lists. Denies win over
// allows; an action no rule matches falls through to Ask.
type Policy struct {
	fileRules    []Rule
	commandRules []Rule
	gitRules     []Rule
}

// NewPolicy creates an empty policy. An empty policy answers Ask for
// everything.
func NewPolicy() *Policy {
	return &Policy{}
}

// AllowFiles adds allow rules for file action paths.
func (p *Policy) AllowFiles(patterns ...string) *Policy {
	return p.addFiles(Allow, patterns)
}

// DenyFiles adds deny rules for file action paths.
func (p *Policy) DenyFiles(patterns ...string) *Policy {
	return p.addFiles(Deny, patterns)
}

// AllowCommands adds allow rules for shell command prefixes.
func (p *Policy) AllowCommands(patterns ...string) *Policy {
	return p.addCommands(Allow, patterns)
}

// DenyCommands adds deny rules for shell command prefixes.
func (p *Policy) DenyCommands(patterns ...string) *Policy {
	return p.addCommands(Deny, patterns)
}

// AllowGit adds allow rules for git operations, e.g. "git:commit".
func (p *Policy) AllowGit(ops ...domain.GitOp) *Policy {
	for _, op := range ops {
		p.gitRules = append(p.gitRules, Rule{Pattern: "git:" + string(op), Decision: Allow})
	}
	return p
}

// DenyGit adds deny rules for git operations.
func (p *Policy) DenyGit(ops ...domain.GitOp) *Policy {
	for _, op := range ops {
		p.gitRules = append(p.gitRules, Rule{Pattern: "git:" + string(op), Decision: Deny})
	}
	return p
}

func (p *Policy) addFiles(d Decision, patterns []string) *Policy {
	for _, pat := range patterns {
		p.fileRules = append(p.fileRules, Rule{Pattern: pat, Decision: d})
	}
	return p
}

func (p *Policy) addCommands(d Decision, patterns []string) *Policy {
	for _, pat := range patterns {
		p.commandRules = append(p.commandRules, Rule{Pattern: pat, Decision: d})
	}
	return p
}

// Decide evaluates action and returns the verdict plus the pattern that
// produced it ("" for Ask).
func (p *Policy) Decide(action domain.Action) (Decision, string) {
	switch a := action.(type) {
	case domain.FileCreate:
		return pick(p.fileRules, a.Path, matchPath)
	case domain.FileEdit:
		return pick(p.fileRules, a.Path, matchPath)
	case domain.ShellCommand:
		return pick(p.commandRules, a.Command, matchCommand)
	case domain.GitOperation:
		return pick(p.gitRules, "git:"+string(a.Operation), func(pat, s string) bool { return pat == s })
	}
	return Ask, ""
}

// pick applies deny > allow > ask precedence across matching rules.
func pick(rules []Rule, subject string, match func(pattern, subject string) bool) (Decision, string) {
	verdict, pattern := Ask, ""
	for _, r := range rules {
		if !match(r.Pattern, subject) {
			continue
		}
		if r.Decision == Deny {
			return Deny, r.Pattern
		}
		verdict, pattern = Allow, r.Pattern
	}
	return verdict, pattern
}

func matchPath(pattern, path string) bool {
	ok, err := doublestar.Match(pattern, path)
	return err == nil && ok
}

// matchCommand treats a trailing " *" as a prefix wildcard; anything else
// must match the whole command.
func matchCommand(pattern, command string) bool {
	if prefix, ok := strings.CutSuffix(pattern, " *"); ok {
		return command == prefix || strings.HasPrefix(command, prefix+" ")
	}
	return command == pattern
}
