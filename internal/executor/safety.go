package executor

import (
	"fmt"
	"regexp"
	"strings"
)

// blockedPattern pairs a command regex with the reason it is blocked.
type blockedPattern struct {
	regex  *regexp.Regexp
	reason string
}

// blocklist holds the shell commands refused outright. This is a guardrail
// against obviously catastrophic commands, not a security boundary: a
// determined prompt can compose around it, which is why execution sits
// behind approval.
var blocklist = []blockedPattern{
	{
		regex:  regexp.MustCompile(`rm\s+(-[a-zA-Z]*[rf][a-zA-Z]*\s+)+(/|/\*|~|\$HOME)(\s|$)`),
		reason: "recursive delete of a critical path",
	},
	{
		regex:  regexp.MustCompile(`rm\s+-[a-zA-Z]*rf[a-zA-Z]*\s+\*`),
		reason: "recursive wildcard delete",
	},
	{
		regex:  regexp.MustCompile(`(^|\s|;|&&|\|\|)sudo\s`),
		reason: "privilege escalation",
	},
	{
		regex:  regexp.MustCompile(`\bmkfs(\.\w+)?\s`),
		reason: "filesystem formatting",
	},
	{
		regex:  regexp.MustCompile(`\bdd\s+.*of=/dev/`),
		reason: "raw device write",
	},
	{
		regex:  regexp.MustCompile(`\bdd\s+.*if=/dev/zero`),
		reason: "zero-fill write",
	},
	{
		regex:  regexp.MustCompile(`>\s*/dev/sd[a-z]`),
		reason: "redirect onto a raw disk device",
	},
	{
		regex:  regexp.MustCompile(`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;`),
		reason: "fork bomb",
	},
	{
		regex:  regexp.MustCompile(`chmod\s+(-R\s+)?777\s+/(\s|$|[a-z])`),
		reason: "world-writable permissions on a system path",
	},
}

// ValidateCommand checks a shell command against the blocklist. A nil return
// means the command may proceed to approval; it is not an endorsement.
func ValidateCommand(command string) error {
	cmd := strings.TrimSpace(command)
	for _, p := range blocklist {
		if p.regex.MatchString(cmd) {
			return fmt.Errorf("Blocked dangerous command: %s", p.reason)
		}
	}
	return nil
}
