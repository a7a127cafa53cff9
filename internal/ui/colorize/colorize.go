// Package colorize applies terminal syntax highlighting to x86 disassembly
// text via chroma. Colors are skipped entirely when DISVIEW_NO_COLOR is set.
package colorize

import (
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// getAssemblyLexer returns an x86 assembly lexer with fallbacks.
func getAssemblyLexer() chroma.Lexer {
	// GNU syntax reads best with the gas lexer; nasm covers Intel syntax.
	candidates := []string{"gas", "GAS", "nasm"}
	for _, name := range candidates {
		if lexer := lexers.Get(name); lexer != nil {
			return lexer
		}
	}
	return nil
}

func getDisasmStyle() *chroma.Style {
	candidates := []string{"disview-dark", "monokai", "dracula"}
	for _, name := range candidates {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

func getTerminalFormatter() chroma.Formatter {
	candidates := []string{"terminal16m", "terminal256"}
	for _, name := range candidates {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

// Assembly highlights one or more lines of disassembly text. On any
// tokenizer or formatter failure the input comes back unchanged.
func Assembly(code string) string {
	if os.Getenv("DISVIEW_NO_COLOR") != "" {
		return code
	}

	lexer := getAssemblyLexer()
	if lexer == nil {
		return code
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := getTerminalFormatter().Format(&buf, getDisasmStyle(), iterator); err != nil {
		return code
	}

	// chroma appends a newline for single-line input; keep the shape of
	// what we were given.
	out := buf.String()
	if !strings.HasSuffix(code, "\n") {
		out = strings.TrimSuffix(out, "\n")
	}
	return out
}
