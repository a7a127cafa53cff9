package colorize

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
)

func init() {
	// Register the custom disassembly style on package initialization
	_ = DisviewDark
}

// DisviewDark is the style used for disassembly listings.
var DisviewDark = styles.Register(chroma.MustNewStyle("disview-dark", chroma.StyleEntries{
	chroma.Text:       "#d4d4d4",
	chroma.Background: "bg:#1b1b1b",
	chroma.Comment:    "#6a9955",

	// Mnemonics: the gas lexer tokenizes them as names/functions.
	chroma.Keyword:      "#dcdcaa",
	chroma.Name:         "#dcdcaa",
	chroma.NameFunction: "#dcdcaa",

	// Registers
	chroma.NameBuiltin:  "#4ec9b0",
	chroma.NameVariable: "#4ec9b0",

	// Immediates and addresses
	chroma.LiteralNumber:        "#ce9178",
	chroma.LiteralNumberHex:     "#ce9178",
	chroma.LiteralNumberInteger: "#ce9178",

	// Resolved branch targets
	chroma.NameLabel: "#c586c0",

	chroma.Operator:    "#d4d4d4",
	chroma.Punctuation: "#d4d4d4",
	chroma.String:      "#ce9178",
}))
