package cli

import (
	"fmt"
	"io"
	"strings"
)

func completions(args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: coach completions bash|zsh|fish")
	}
	switch args[0] {
	case "bash":
		return bashCompletion(out)
	case "zsh":
		return zshCompletion(out)
	case "fish":
		return fishCompletion(out)
	default:
		return fmt.Errorf("unsupported shell %q, want bash, zsh or fish", args[0])
	}
}

func commandNames() string {
	names := make([]string, 0, len(commands))
	for _, c := range commands {
		names = append(names, c.name)
	}
	return strings.Join(names, " ")
}

func bashCompletion(w io.Writer) error {
	var b strings.Builder
	b.WriteString(`# bash completion for coach
_coach() {
    local cur prev
    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[COMP_CWORD-1]}"
    case "$prev" in
`)
	for _, c := range commands {
		if len(c.sub) > 0 {
			fmt.Fprintf(&b, "        %s) COMPREPLY=($(compgen -W %q -- \"$cur\")); return ;;\n", c.name, strings.Join(c.sub, " "))
		}
	}
	fmt.Fprintf(&b, `    esac
    if [ "$COMP_CWORD" -eq 1 ]; then
        COMPREPLY=($(compgen -W %q -- "$cur"))
    fi
}
complete -F _coach coach
`, commandNames())
	_, err := io.WriteString(w, b.String())
	return err
}

func zshCompletion(w io.Writer) error {
	var b strings.Builder
	b.WriteString("#compdef coach\n\n_coach() {\n  local -a cmds\n  cmds=(\n")
	for _, c := range commands {
		fmt.Fprintf(&b, "    '%s:%s'\n", c.name, c.summary)
	}
	b.WriteString("  )\n  if (( CURRENT == 2 )); then\n    _describe 'command' cmds\n    return\n  fi\n  case $words[2] in\n")
	for _, c := range commands {
		if len(c.sub) > 0 {
			fmt.Fprintf(&b, "    %s) compadd %s ;;\n", c.name, strings.Join(c.sub, " "))
		}
	}
	b.WriteString("  esac\n}\n\n_coach \"$@\"\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func fishCompletion(w io.Writer) error {
	var b strings.Builder
	b.WriteString("# fish completion for coach\ncomplete -c coach -f\n")
	for _, c := range commands {
		fmt.Fprintf(&b, "complete -c coach -n __fish_use_subcommand -a %s -d '%s'\n", c.name, c.summary)
		if len(c.sub) > 0 {
			fmt.Fprintf(&b, "complete -c coach -n '__fish_seen_subcommand_from %s' -a '%s'\n", c.name, strings.Join(c.sub, " "))
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
