package shell

import (
	"fmt"
	"strings"
)

// PathSnippet returns shell code that prepends binDir to PATH unless it is
// already there. Evaluating it twice is harmless.
func PathSnippet(shell ShellType, binDir string) (string, error) {
	if err := ValidateShell(shell); err != nil {
		return "", err
	}

	switch shell {
	case ShellFish:
		return fmt.Sprintf("fish_add_path --global --prepend %s\n", fishQuote(binDir)), nil
	default:
		q := posixQuote(binDir)
		return fmt.Sprintf("case \":${PATH}:\" in\n  *:%s:*) ;;\n  *) export PATH=%s\"${PATH:+:${PATH}}\" ;;\nesac\n", q, q), nil
	}
}

// posixQuote single-quotes s for sh, bash and zsh.
func posixQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// fishQuote single-quotes s for fish, where only \ and ' are special.
func fishQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}
