package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/v2/list"
	"github.com/charmbracelet/bubbles/v2/spinner"
	"github.com/charmbracelet/bubbles/v2/viewport"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"

	"disview/internal/disview"
	"disview/internal/disview/styles"
	"disview/internal/elfx"
	"disview/internal/ui/colorize"
)

type viewMode int

const (
	viewListing viewMode = iota
	viewSymbols
	viewSummary
)

var (
	headerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Bold(true)
	addrDimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	addrSelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))
	byteColStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	emptyMsgStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true)
)

type listingMsg struct {
	model *disview.Model
	pc    uint64
}

type symbolsMsg struct {
	items []list.Item
}

type symbolItem struct {
	address   uint64
	name      string
	demangled string
}

func (i symbolItem) Title() string {
	return fmt.Sprintf("%x  %s", i.address, i.demangled)
}

func (i symbolItem) FilterValue() string {
	return i.demangled + " " + i.name
}

type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d itemDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	i, ok := listItem.(symbolItem)
	if !ok {
		return
	}

	indicator := " "
	addrStyle := addrDimStyle
	if index == m.Index() {
		indicator = ">"
		addrStyle = addrSelStyle
	}

	fmt.Fprintf(w, " %s  %s  %s",
		indicator,
		addrStyle.Render(fmt.Sprintf("%012x", i.address)),
		i.demangled)
}

type tuiConfig struct {
	resolver *disview.Resolver
	pc       uint64
	image    *elfx.Image // nil for live-process targets
	target   string
}

type tuiModel struct {
	cfg tuiConfig

	viewport    viewport.Model
	summaryView viewport.Model
	symbolsList list.Model
	spinner     spinner.Model

	mode     viewMode
	width    int
	height   int
	loading  bool
	pc       uint64
	listing  *disview.Model
	haveSyms bool
}

func newTUI(cfg tuiConfig) tuiModel {
	vp := viewport.New()
	vp.SetWidth(80)
	vp.SetHeight(24)

	sv := viewport.New()
	sv.SetWidth(80)
	sv.SetHeight(24)

	symbolsList := list.New([]list.Item{}, itemDelegate{}, 80, 24)
	symbolsList.SetShowStatusBar(false)
	symbolsList.SetFilteringEnabled(true)
	symbolsList.Title = "Functions"
	symbolsList.Styles.Title = lipgloss.NewStyle().
		Foreground(lipgloss.Color("99")).
		MarginLeft(2)
	symbolsList.SetShowHelp(true)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))

	return tuiModel{
		cfg:         cfg,
		viewport:    vp,
		summaryView: sv,
		symbolsList: symbolsList,
		spinner:     s,
		mode:        viewListing,
		width:       80,
		height:      24,
		loading:     true,
		pc:          cfg.pc,
	}
}

func resolveCmd(r *disview.Resolver, pc uint64) tea.Cmd {
	return func() tea.Msg {
		return listingMsg{model: resolveModel(r, pc), pc: pc}
	}
}

func loadSymbolsCmd(img *elfx.Image) tea.Cmd {
	return func() tea.Msg {
		if img == nil {
			return symbolsMsg{}
		}
		items := make([]list.Item, 0, len(img.Syms))
		for _, sym := range img.Syms {
			items = append(items, symbolItem{
				address:   sym.Value,
				name:      sym.Name,
				demangled: elfx.Demangle(sym.Name),
			})
		}
		return symbolsMsg{items: items}
	}
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(
		resolveCmd(m.cfg.resolver, m.pc),
		loadSymbolsCmd(m.cfg.image),
		m.spinner.Tick,
	)
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case listingMsg:
		m.listing = msg.model
		m.pc = msg.pc
		m.loading = false
		m.viewport.SetContent(m.renderListing())
		m.viewport.GotoTop()
		m.summaryView.SetContent(m.renderSummary())
		return m, nil

	case symbolsMsg:
		m.haveSyms = len(msg.items) > 0
		cmd = m.symbolsList.SetItems(msg.items)
		return m, cmd

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		if msg.Width != m.width || msg.Height != m.height {
			m.width = msg.Width
			m.height = msg.Height
			m.viewport.SetWidth(msg.Width)
			m.viewport.SetHeight(msg.Height - 2)
			m.summaryView.SetWidth(msg.Width)
			m.summaryView.SetHeight(msg.Height - 2)
			m.symbolsList.SetWidth(msg.Width)
			m.symbolsList.SetHeight(msg.Height - 2)
			m.summaryView.SetContent(m.renderSummary())
		}

	case tea.KeyMsg:
		// While the symbol list is filtering it owns the keyboard, except
		// for quitting.
		if m.mode == viewSymbols && m.symbolsList.FilterState() == list.Filtering {
			if s := msg.String(); s == "ctrl+c" {
				return m, tea.Quit
			}
			break
		}

		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "l":
			m.mode = viewListing
			return m, nil
		case "s":
			if m.haveSyms {
				m.mode = viewSymbols
			}
			return m, nil
		case "i":
			m.mode = viewSummary
			return m, nil
		case "enter":
			if m.mode == viewSymbols {
				if selected := m.symbolsList.SelectedItem(); selected != nil {
					if sym, ok := selected.(symbolItem); ok {
						m.mode = viewListing
						m.loading = true
						return m, tea.Batch(
							resolveCmd(m.cfg.resolver, sym.address),
							m.spinner.Tick,
						)
					}
				}
			}
			return m, nil
		case "tab":
			switch m.mode {
			case viewListing:
				if m.haveSyms {
					m.mode = viewSymbols
				} else {
					m.mode = viewSummary
				}
			case viewSymbols:
				m.mode = viewSummary
			case viewSummary:
				m.mode = viewListing
			}
			return m, nil
		}
	}

	switch m.mode {
	case viewSymbols:
		m.symbolsList, cmd = m.symbolsList.Update(msg)
	case viewSummary:
		m.summaryView, cmd = m.summaryView.Update(msg)
	default:
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m tuiModel) View() string {
	var content string
	switch {
	case m.loading:
		content = fmt.Sprintf("\n %s Resolving %#x ...\n", m.spinner.View(), m.pc)
	case m.mode == viewSymbols:
		content = m.symbolsList.View()
	case m.mode == viewSummary:
		content = m.summaryView.View()
	default:
		content = m.viewport.View()
	}

	var menu string
	switch m.mode {
	case viewSymbols:
		menu = " Enter: disassemble • L: listing • I: info • Tab: cycle • Q: quit "
	case viewSummary:
		menu = " L: listing • S: symbols • Tab: cycle • Q: quit "
	default:
		if m.haveSyms {
			menu = " S: symbols • I: info • Tab: cycle • Q: quit "
		} else {
			menu = " I: info • Q: quit "
		}
	}

	menuStyle := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("252")).
		Padding(0, 1).
		Width(m.width)

	return content + "\n" + menuStyle.Render(menu)
}

// renderListing lays the model's three columns out as viewport text, with
// the disassembly column syntax-highlighted.
func (m *tuiModel) renderListing() string {
	if m.listing == nil || m.listing.RowCount() == 0 {
		return "\n " + emptyMsgStyle.Render("No instructions to display.")
	}

	var b strings.Builder
	name := m.listing.Listing().Function
	if name != "" {
		fmt.Fprintf(&b, " %s  %s\n\n",
			headerStyle.Render(elfx.Demangle(name)),
			addrDimStyle.Render(m.listing.Listing().Image))
	}
	fmt.Fprintf(&b, " %s\n", headerStyle.Render(fmt.Sprintf("%-18s  %-27s  %s",
		m.listing.ColumnName(disview.ColumnAddress),
		m.listing.ColumnName(disview.ColumnInsnBytes),
		m.listing.ColumnName(disview.ColumnDisassembly))))

	for row := 0; row < m.listing.RowCount(); row++ {
		fmt.Fprintf(&b, " %s  %s  %s\n",
			addrDimStyle.Render(m.listing.Cell(row, disview.ColumnAddress)),
			byteColStyle.Render(fmt.Sprintf("%-27s", m.listing.Cell(row, disview.ColumnInsnBytes))),
			colorize.Assembly(m.listing.Cell(row, disview.ColumnDisassembly)))
	}
	return b.String()
}

// renderSummary produces the markdown info panel.
func (m *tuiModel) renderSummary() string {
	var md strings.Builder
	md.WriteString("# Disassembly\n\n")
	fmt.Fprintf(&md, "- **Target** `%s`\n", m.cfg.target)
	fmt.Fprintf(&md, "- **PC** `%#x`\n", m.pc)

	if m.listing != nil && m.listing.RowCount() > 0 {
		listing := m.listing.Listing()
		fmt.Fprintf(&md, "- **Function** `%s`\n", elfx.Demangle(listing.Function))
		fmt.Fprintf(&md, "- **Image** `%s`\n", listing.Image)
		fmt.Fprintf(&md, "- **Instructions** %d\n", m.listing.RowCount())
		first := listing.Records[0].Address
		last := listing.Records[len(listing.Records)-1]
		fmt.Fprintf(&md, "- **Span** `%#x` to `%#x`\n", first, last.Address+uint64(len(last.Bytes)))
	} else {
		md.WriteString("\nNothing to disassemble at this address.\n")
	}

	renderer := styles.MarkdownRenderer(m.width - 2)
	if renderer == nil {
		return md.String()
	}
	rendered, err := renderer.Render(md.String())
	if err != nil {
		return md.String()
	}
	return strings.TrimSuffix(rendered, "\n")
}
