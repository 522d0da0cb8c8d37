package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"

	"github.com/dmitrijs2005/trainlog/internal/client/config"
)

// runEditor opens path in the user's editor; tests replace it.
var runEditor = func(editor, path string) error {
	cmd := exec.Command(editor, path)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	return cmd.Run()
}

func configCmd(cfg *config.Config, args []string, out, errOut io.Writer) error {
	sub := "show"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}

	switch sub {
	case "show":
		b, err := cfg.Marshal()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "# %s\n", cfg.Path)
		_, err = out.Write(b)
		return err

	case "edit":
		if _, err := os.Stat(cfg.Path); errors.Is(err, fs.ErrNotExist) {
			if _, err := config.Init(cfg.Path, false); err != nil {
				return err
			}
		}
		editor := os.Getenv("VISUAL")
		if editor == "" {
			editor = os.Getenv("EDITOR")
		}
		if editor == "" {
			editor = "vi"
		}
		if err := runEditor(editor, cfg.Path); err != nil {
			return fmt.Errorf("run %s: %w", editor, err)
		}
		if _, err := config.LoadConfig([]string{"-c", cfg.Path}, func(string) string { return "" }); err != nil {
			return fmt.Errorf("config saved but not usable: %w", err)
		}
		fmt.Fprintf(out, "Config saved: %s\n", cfg.Path)
		return nil

	case "init":
		fset := newFlagSet("config init", errOut)
		force := fset.Bool("force", false, "overwrite an existing file")
		if err := fset.Parse(args); err != nil {
			return err
		}
		if _, err := config.Init(cfg.Path, *force); err != nil {
			return err
		}
		fmt.Fprintf(out, "Config written: %s\n", cfg.Path)
		return nil

	default:
		return fmt.Errorf("usage: coach config show|edit|init")
	}
}
