// Package shell holds the pipeline grammar: an ordered token list becomes a
// Pipeline of exec stages with at most one output redirection and an
// optional background marker. Tokenization (quoting, escaping) happens
// before this package; see the REPL.
package shell

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyStage       = errors.New("syntax error near '|'")
	ErrMissingFilename  = errors.New("redirection without filename")
	ErrDoubleRedirect   = errors.New("multiple output redirections")
	ErrBackgroundNotEnd = errors.New("'&' must be the last word")
	ErrTooManyStages    = errors.New("too many pipeline stages")
	ErrTooManyArgs      = errors.New("too many arguments")
)

// Stage is one command of a pipeline: program name plus arguments.
type Stage []string

// Redirect describes where the final stage's output goes.
type Redirect struct {
	Path   string
	Append bool
}

// Pipeline is a parsed command line: one or more stages connected by pipes,
// an optional output redirection applied to the last stage, and a
// background marker.
type Pipeline struct {
	Stages     []Stage
	Redirect   *Redirect
	Background bool

	// Cmdline is the literal text the pipeline was parsed from, kept for
	// job reporting.
	Cmdline string
}

// Limits bounds pipeline size; both values must be positive.
type Limits struct {
	MaxStages int
	MaxArgs   int
}

func isOperator(tok string) bool {
	switch tok {
	case "|", ">", ">>", "&":
		return true
	}
	return false
}

// Parse turns a token list into a Pipeline. A nil Pipeline with a nil error
// means the line was blank. Operators are only recognized as standalone
// tokens.
func Parse(tokens []string, cmdline string, limits Limits) (*Pipeline, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	pl := &Pipeline{Cmdline: cmdline}

	// A trailing '&' marks the whole pipeline as background.
	if tokens[len(tokens)-1] == "&" {
		pl.Background = true
		tokens = tokens[:len(tokens)-1]
		if len(tokens) == 0 {
			return nil, ErrEmptyStage
		}
	}

	cur := Stage{}
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch tok {
		case "|":
			if len(cur) == 0 {
				return nil, ErrEmptyStage
			}
			if len(pl.Stages)+1 >= limits.MaxStages {
				return nil, fmt.Errorf("%w (max %d)", ErrTooManyStages, limits.MaxStages)
			}
			pl.Stages = append(pl.Stages, cur)
			cur = Stage{}

		case ">", ">>":
			if i+1 >= len(tokens) || isOperator(tokens[i+1]) {
				return nil, ErrMissingFilename
			}
			if pl.Redirect != nil {
				return nil, ErrDoubleRedirect
			}
			pl.Redirect = &Redirect{Path: tokens[i+1], Append: tok == ">>"}
			i++ // skip the filename

		case "&":
			return nil, ErrBackgroundNotEnd

		default:
			if len(cur) >= limits.MaxArgs {
				return nil, fmt.Errorf("%w (max %d)", ErrTooManyArgs, limits.MaxArgs)
			}
			cur = append(cur, tok)
		}
	}

	if len(cur) == 0 {
		return nil, ErrEmptyStage
	}
	pl.Stages = append(pl.Stages, cur)

	return pl, nil
}
