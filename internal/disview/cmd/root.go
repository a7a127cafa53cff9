// Package cmd implements the disview command line: resolve a program counter
// inside a debugged process or a binary, and present the enclosing
// function's disassembly.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"disview/internal/disasm"
	"disview/internal/disview"
	"disview/internal/disview/log"
	"disview/internal/elfx"
	"disview/internal/ksym"
	"disview/internal/logging"
	"disview/internal/session"
)

var rootCmd = &cobra.Command{
	Use:   "disview <binary|pid>",
	Short: "Show the disassembly of the function containing an address",
	Long: `disview resolves an address inside a binary or a stopped process to its
containing function and decodes that function into a symbol-annotated
instruction listing with three columns: address, raw bytes, disassembly.

Addresses above the kernel-space threshold are looked up in the kernel
debug image instead of the owning library.`,
	Example: `
# Disassemble the function containing an address in a binary
disview --pc 0x401c20 /usr/bin/ls

# Same, by symbol name, printed without the TUI
disview --symbol main -n /usr/bin/ls

# Resolve inside a stopped process
disview --pc 0x7f3a08b412d0 $(pidof myserver)
  `,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		debug, _ := cmd.Flags().GetBool("debug")
		log.Setup(debug || logging.IsDebug())

		var (
			sess   disview.Session
			img    *elfx.Image
			target = args[0]
		)
		if pid, err := strconv.Atoi(args[0]); err == nil {
			ps, err := session.Attach(pid)
			if err != nil {
				return err
			}
			defer ps.Close()
			sess = ps
			target = fmt.Sprintf("pid %d", pid)
		} else {
			ss, err := session.OpenStatic(args[0])
			if err != nil {
				return err
			}
			defer ss.Close()
			sess = ss
			img = ss.Image()
		}

		pc, err := targetPC(cmd, img)
		if err != nil {
			return err
		}
		resolver := buildResolver(cmd, sess)

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return writeJSON(os.Stdout, target, resolveModel(resolver, pc))
		}
		if noTUI, _ := cmd.Flags().GetBool("no-tui"); noTUI {
			return writeListing(os.Stdout, resolveModel(resolver, pc))
		}

		// Route logs through the charm logger while the TUI owns the
		// terminal; DISVIEW_LOG_TO_FILE keeps the alternate screen clean.
		lg := logging.NewLogger()
		defer lg.Close()
		slog.SetDefault(slog.New(lg.Logger))

		program := tea.NewProgram(
			newTUI(tuiConfig{resolver: resolver, pc: pc, image: img, target: target}),
			tea.WithAltScreen(),
			tea.WithContext(cmd.Context()),
		)
		if _, err := program.Run(); err != nil {
			slog.Error("TUI run error", "error", err)
			return fmt.Errorf("TUI error: %v", err)
		}
		return nil
	},
}

// targetPC picks the address to resolve: --pc wins, then --symbol, then the
// binary's entry point. Live processes have no usable default.
func targetPC(cmd *cobra.Command, img *elfx.Image) (uint64, error) {
	if pcStr, _ := cmd.Flags().GetString("pc"); pcStr != "" {
		pc, err := strconv.ParseUint(strings.TrimPrefix(pcStr, "0x"), 16, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid --pc %q: %v", pcStr, err)
		}
		return pc, nil
	}
	if name, _ := cmd.Flags().GetString("symbol"); name != "" {
		if img == nil {
			return 0, fmt.Errorf("--symbol requires a binary target")
		}
		for _, sym := range img.Syms {
			if sym.Name == name || elfx.Demangle(sym.Name) == name {
				return sym.Value, nil
			}
		}
		return 0, fmt.Errorf("symbol %q not found in %s", name, img.Path)
	}
	if img != nil && img.File != nil && img.File.Entry != 0 {
		return img.File.Entry, nil
	}
	return 0, fmt.Errorf("--pc is required for a live process target")
}

func buildResolver(cmd *cobra.Command, sess disview.Session) *disview.Resolver {
	kernelImage, _ := cmd.Flags().GetString("kernel-image")
	syntax, _ := cmd.Flags().GetString("syntax")

	var threshold uint64
	if s, _ := cmd.Flags().GetString("kernel-threshold"); s != "" {
		threshold, _ = strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
	}

	cfg := disview.Config{
		Session:         sess,
		Kernel:          session.KernelFile{Path: kernelImage},
		KernelThreshold: threshold,
		Syntax:          disasm.Syntax(syntax),
	}

	// kallsyms names kernel branch targets the kernel image may not cover.
	if table, err := ksym.Load(); err == nil && table.Len() > 0 {
		cfg.ExtraSymbols = append(cfg.ExtraSymbols, table.Lookup)
	} else if err != nil {
		slog.Debug("Kernel symbol table unavailable", "error", err)
	}

	return disview.NewResolver(cfg)
}

// resolveModel collapses every resolution failure into an empty model. The
// failure kinds stay distinguishable in the logs.
func resolveModel(r *disview.Resolver, pc uint64) *disview.Model {
	listing, err := r.Resolve(pc)
	if err != nil {
		slog.Debug("Resolution produced no instructions",
			"pc", fmt.Sprintf("%#x", pc), "error", err)
		listing = nil
	}
	m := disview.NewModel(listing)
	m.Update()
	return m
}

// writeListing prints the model as a plain table for pipes and scripts.
func writeListing(w io.Writer, m *disview.Model) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\t%s\n",
		m.ColumnName(disview.ColumnAddress),
		m.ColumnName(disview.ColumnInsnBytes),
		m.ColumnName(disview.ColumnDisassembly))
	for row := 0; row < m.RowCount(); row++ {
		fmt.Fprintf(tw, "%s\t%s\t%s\n",
			m.Cell(row, disview.ColumnAddress),
			m.Cell(row, disview.ColumnInsnBytes),
			m.Cell(row, disview.ColumnDisassembly))
	}
	return tw.Flush()
}

// jsonListing is the machine-readable output shape, used for regression
// comparisons across runs.
type jsonListing struct {
	Target   string    `json:"target"`
	Function string    `json:"function,omitempty"`
	Image    string    `json:"image,omitempty"`
	Rows     []jsonRow `json:"rows"`
}

type jsonRow struct {
	Address     string `json:"address"`
	Bytes       string `json:"bytes"`
	Disassembly string `json:"disassembly"`
}

func writeJSON(w io.Writer, target string, m *disview.Model) error {
	out := jsonListing{
		Target:   target,
		Function: m.Listing().Function,
		Image:    m.Listing().Image,
		Rows:     []jsonRow{},
	}
	for row := 0; row < m.RowCount(); row++ {
		out.Rows = append(out.Rows, jsonRow{
			Address:     m.Cell(row, disview.ColumnAddress),
			Bytes:       strings.TrimRight(m.Cell(row, disview.ColumnInsnBytes), " "),
			Disassembly: m.Cell(row, disview.ColumnDisassembly),
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func Execute() {
	// fang renders help as markdown, which garbles piped output; fall back
	// to plain cobra when not talking to a terminal or in listing mode.
	plain := !term.IsTerminal(os.Stdout.Fd())
	for _, arg := range os.Args[1:] {
		if arg == "--no-tui" || arg == "-n" || arg == "--json" || arg == "-j" {
			plain = true
			break
		}
	}

	if plain {
		if err := rootCmd.Execute(); err != nil {
			os.Exit(1)
		}
		return
	}

	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringP("pc", "p", "", "Program counter to resolve (hex)")
	rootCmd.Flags().String("symbol", "", "Resolve at a named function instead of --pc")
	rootCmd.Flags().StringP("syntax", "s", "gnu", "Disassembly syntax: gnu, intel, go")
	rootCmd.Flags().BoolP("no-tui", "n", false, "Print the listing and exit")
	rootCmd.Flags().BoolP("json", "j", false, "Print the listing as JSON and exit")
	rootCmd.Flags().String("kernel-image", session.DefaultKernelImagePath, "Kernel debug image path")
	rootCmd.Flags().String("kernel-threshold", "", "Lowest kernel-space address (hex, empty = architecture default)")
	rootCmd.Flags().BoolP("debug", "d", false, "Enable debug logging")
}
