package main

import (
	"fmt"
	"os"
	"slices"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tensorq/circuit"
	"tensorq/gates"
)

// focus represents which panel/mode has keyboard input.
type focus int

const (
	focusCircuit focus = iota
	focusEditor
	focusMenu
	focusSelectTarget
	focusInputParam
	focusSelectControls
	focusEditCell
	focusEditParam
	focusEditWire
	focusEditControl
)

const (
	maxQubits = 10
	minShots  = 16
	maxShots  = 1 << 16
)

// Model represents the TUI application state.
type Model struct {
	grid          *grid // the grid is the single source of truth
	cursorQubit   int
	cursorStep    int
	viewStartStep int // first step currently visible in the view
	width         int
	height        int
	irEditor      textarea.Model
	focus         focus
	lastJSON      string
	statusMsg     string // transient status message (e.g. save confirmation)
	jsonErr       string // parse error from the JSON pane
	showInspector bool   // editor pane shows the contraction plan dump
	useDensity    bool   // density-matrix engine instead of trajectories
	readout       bool   // apply readout error and mitigation when sampling
	shots         int
	seed          int64
	sim           simResult
	run           *runResult

	// Menu state
	menuCat  int
	menuItem int

	// Placement state (for multi-wire operations)
	pending       *menuItem
	targetQubit   int
	paramInput    string
	controlQubits []int

	// Edit state
	editCell       *placed // pointer into grid.cells; edits land directly
	editMenuIdx    int
	editOrigStep   int
	editWireIdx    int // which Qubits index is being moved
	editControlIdx int // which Controls index is being moved
}

func initialModel() Model {
	ta := textarea.New()
	ta.Placeholder = "Edit circuit JSON here..."
	ta.SetWidth(40)
	ta.SetHeight(20)
	ta.ShowLineNumbers = true
	ta.KeyMap.InsertNewline.SetEnabled(true)

	m := Model{
		grid:  newGrid(4),
		focus: focusCircuit,
		shots: 1024,
		seed:  1,
	}
	m.irEditor = ta

	m.syncFromGrid()
	return m
}

// syncFromGrid recompiles the deterministic skeleton into the JSON pane and
// refreshes the live readout. Called after every grid-side edit.
func (m *Model) syncFromGrid() {
	c, err := m.grid.skeleton()
	if err != nil {
		m.jsonErr = err.Error()
		m.refreshSim()
		return
	}
	data, err := c.ToJSON()
	if err != nil {
		m.jsonErr = err.Error()
		m.refreshSim()
		return
	}
	m.jsonErr = ""
	m.lastJSON = string(data)
	m.irEditor.SetValue(m.lastJSON)
	m.refreshSim()
}

// parseEditorInput rebuilds the grid from the JSON pane. The pane keeps the
// user's text as typed; the grid only re-serializes it on the next grid-side
// edit. Collapse and noise cells do not survive the round trip, so editing
// JSON drops them.
func (m *Model) parseEditorInput() {
	val := m.irEditor.Value()
	if val == m.lastJSON {
		return
	}
	m.lastJSON = val
	c, err := circuit.FromJSON([]byte(val))
	if err != nil {
		m.jsonErr = err.Error()
		return
	}
	m.jsonErr = ""
	skipped := m.grid.loadInstructions(c.NumQubits(), c.IR())
	if skipped > 0 {
		m.statusMsg = fmt.Sprintf("%d instructions have no grid form and were dropped", skipped)
	}
	m.cursorQubit = min(m.cursorQubit, m.grid.qubits-1)
	m.refreshSim()
}

func (m *Model) clearPending() {
	m.paramInput = ""
	m.controlQubits = nil
	m.pending = nil
}

// placeCell builds a cell from a menu item and pins it at the cursor step.
// target is the last selected wire for multi-wire gates (-1 for single).
// Returns true if placement succeeded, false if blocked.
func (m *Model) placeCell(item menuItem, target int) bool {
	p := placed{Name: item.id, Kind: item.kind, Step: m.cursorStep}
	switch item.kind {
	case cellBarrier:
		// spans the whole register, occupies no wire
	case cellProject:
		p.Name = "postselect"
		p.Qubits = []int{m.cursorQubit}
		if item.id == "post1" {
			p.Params = []float64{1}
		} else {
			p.Params = []float64{0}
		}
	case cellCollapse:
		p.Name = "measure"
		p.Qubits = []int{m.cursorQubit}
	case cellNoise:
		p.Qubits = []int{m.cursorQubit}
		p.Params = parseParams(m.paramInput)
		if len(p.Params) == 0 {
			p.Params = defaultNoiseParams(item.id)
		}
		if _, err := buildChannel(item.id, p.Params); err != nil {
			m.statusMsg = fmt.Sprintf("Cannot place: %v", err)
			m.clearPending()
			return false
		}
	case cellGate:
		switch item.wires {
		case 2:
			p.Qubits = []int{m.cursorQubit, target}
		case 3:
			p.Qubits = append([]int{m.cursorQubit}, m.controlQubits...)
			p.Qubits = append(p.Qubits, target)
		default:
			p.Qubits = []int{m.cursorQubit}
		}
		p.Params = parseParams(m.paramInput)
		if _, err := gates.Build(item.id, p.Params...); err != nil {
			m.statusMsg = fmt.Sprintf("Cannot place: %v", err)
			m.clearPending()
			return false
		}
	}

	if !m.grid.place(p) {
		m.statusMsg = "Cannot place: wire already occupied at this step"
		m.clearPending()
		return false
	}

	m.clearPending()
	m.cursorStep++
	m.syncFromGrid()
	return true
}

// afterParams routes a picked menu item to wire selection or placement once
// any parameter input is done.
func (m *Model) afterParams(item menuItem) {
	switch {
	case item.wires >= 3:
		if m.grid.qubits < item.wires {
			m.statusMsg = fmt.Sprintf("Need %d qubits for %s", item.wires, item.name)
			m.clearPending()
			m.focus = focusCircuit
			return
		}
		m.controlQubits = nil
		m.focus = focusSelectControls
		m.targetQubit = m.cursorQubit + 1
		if m.targetQubit >= m.grid.qubits {
			m.targetQubit = m.cursorQubit - 1
		}
	case item.wires == 2:
		if m.grid.qubits < 2 {
			m.statusMsg = "Need 2 qubits for " + item.name
			m.clearPending()
			m.focus = focusCircuit
			return
		}
		m.focus = focusSelectTarget
		m.targetQubit = m.cursorQubit + 1
		if m.targetQubit >= m.grid.qubits {
			m.targetQubit = m.cursorQubit - 1
		}
	default:
		m.placeCell(item, -1)
		m.focus = focusCircuit
	}
}

// ──────────────────────────── Init / Update ────────────────────────────

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		editorW := max(msg.Width/3-6, 20)
		m.irEditor.SetWidth(editorW)
		ctrlH := 6
		bodyH := msg.Height - ctrlH - 4
		m.irEditor.SetHeight(max(bodyH/2-4, 4))

	case tea.KeyMsg:
		key := msg.String()
		m.statusMsg = ""

		if key == "ctrl+c" {
			return m, tea.Quit
		}

		switch m.focus {
		case focusCircuit:
			switch key {
			case "q":
				return m, tea.Quit
			case "tab":
				m.focus = focusEditor
				m.showInspector = false
				m.irEditor.Focus()
			case "ctrl+r":
				m.grid = newGrid(m.grid.qubits)
				m.cursorStep = 0
				m.viewStartStep = 0
				m.run = nil
				m.syncFromGrid()
			case "ctrl+s":
				if err := os.WriteFile("circuit.json", []byte(m.lastJSON), 0644); err != nil {
					m.statusMsg = fmt.Sprintf("Save error: %v", err)
				} else {
					m.statusMsg = "Saved circuit.json"
				}
			case "ctrl+o":
				data, err := os.ReadFile("circuit.json")
				if err != nil {
					m.statusMsg = fmt.Sprintf("Load error: %v", err)
					break
				}
				c, err := circuit.FromJSON(data)
				if err != nil {
					m.statusMsg = fmt.Sprintf("Load error: %v", err)
					break
				}
				skipped := m.grid.loadInstructions(c.NumQubits(), c.IR())
				m.cursorQubit = min(m.cursorQubit, m.grid.qubits-1)
				m.cursorStep = 0
				m.viewStartStep = 0
				m.statusMsg = "Loaded circuit.json"
				if skipped > 0 {
					m.statusMsg = fmt.Sprintf("Loaded circuit.json (%d instructions dropped)", skipped)
				}
				m.syncFromGrid()
			case "up", "k":
				if m.cursorQubit > 0 {
					m.cursorQubit--
				}
			case "down", "j":
				if m.cursorQubit < m.grid.qubits-1 {
					m.cursorQubit++
				}
			case "left", "h":
				if m.cursorStep > 0 {
					m.cursorStep--
					if m.cursorStep < m.viewStartStep {
						m.viewStartStep = m.cursorStep
					}
				}
			case "right", "l":
				m.cursorStep++
			case "+", "=":
				if m.grid.qubits < maxQubits {
					m.grid.qubits++
					m.syncFromGrid()
				}
			case "-":
				if m.grid.qubits > 1 {
					m.grid.qubits--
					m.cursorQubit = min(m.cursorQubit, m.grid.qubits-1)
					m.grid.removeQubit(m.grid.qubits)
					m.syncFromGrid()
				}
			case "a":
				m.focus = focusMenu
				m.menuCat = 0
				m.menuItem = 0
			case "backspace", "delete":
				m.grid.removeAt(m.cursorStep, m.cursorQubit)
				m.syncFromGrid()
			case "e":
				if p := m.grid.at(m.cursorStep, m.cursorQubit); p != nil {
					m.editCell = p
					m.editMenuIdx = 0
					m.editOrigStep = m.cursorStep
					m.focus = focusEditCell
				}
			case "r":
				m.runShots()
				if m.run != nil && m.run.err == "" {
					m.statusMsg = fmt.Sprintf("Sampled %d shots (%s)", m.run.shots, m.run.mode)
				}
			case "m":
				m.useDensity = !m.useDensity
				if m.useDensity {
					m.statusMsg = "Engine: density matrix"
				} else {
					m.statusMsg = "Engine: trajectory"
				}
				m.refreshSim()
			case "x":
				m.readout = !m.readout
				if m.readout {
					m.statusMsg = "Readout error: on"
				} else {
					m.statusMsg = "Readout error: off"
				}
			case "i":
				m.showInspector = !m.showInspector
			case "[":
				m.shots = max(m.shots/2, minShots)
				m.statusMsg = fmt.Sprintf("Shots: %d", m.shots)
			case "]":
				m.shots = min(m.shots*2, maxShots)
				m.statusMsg = fmt.Sprintf("Shots: %d", m.shots)
			}

		case focusMenu:
			switch key {
			case "esc":
				m.focus = focusCircuit
			case "up", "k":
				if m.menuItem > 0 {
					m.menuItem--
				}
			case "down", "j":
				cat := opMenu[m.menuCat]
				if m.menuItem < len(cat.items)-1 {
					m.menuItem++
				}
			case "left", "h":
				if m.menuCat > 0 {
					m.menuCat--
					m.menuItem = 0
				}
			case "right", "l":
				if m.menuCat < len(opMenu)-1 {
					m.menuCat++
					m.menuItem = 0
				}
			case "enter":
				item := opMenu[m.menuCat].items[m.menuItem]
				m.pending = &item

				if item.params > 0 {
					m.paramInput = ""
					m.focus = focusInputParam
					break
				}
				m.afterParams(item)
			}

		case focusSelectTarget:
			switch key {
			case "esc":
				m.focus = focusCircuit
				m.clearPending()
			case "up", "k":
				for next := m.targetQubit - 1; next >= 0; next-- {
					if next != m.cursorQubit && !slices.Contains(m.controlQubits, next) {
						m.targetQubit = next
						break
					}
				}
			case "down", "j":
				for next := m.targetQubit + 1; next < m.grid.qubits; next++ {
					if next != m.cursorQubit && !slices.Contains(m.controlQubits, next) {
						m.targetQubit = next
						break
					}
				}
			case "enter":
				if m.pending != nil && m.placeCell(*m.pending, m.targetQubit) {
					m.focus = focusCircuit
				}
			}

		case focusSelectControls:
			switch key {
			case "esc":
				m.focus = focusCircuit
				m.clearPending()
			case "up", "k":
				for next := m.targetQubit - 1; next >= 0; next-- {
					if next != m.cursorQubit {
						m.targetQubit = next
						break
					}
				}
			case "down", "j":
				for next := m.targetQubit + 1; next < m.grid.qubits; next++ {
					if next != m.cursorQubit {
						m.targetQubit = next
						break
					}
				}
			case "enter":
				m.controlQubits = append(m.controlQubits, m.targetQubit)
				m.focus = focusSelectTarget
				for q := 0; q < m.grid.qubits; q++ {
					if q != m.cursorQubit && !slices.Contains(m.controlQubits, q) {
						m.targetQubit = q
						break
					}
				}
			}

		case focusEditCell:
			if m.editCell == nil {
				m.focus = focusCircuit
				break
			}
			editOptions := m.getEditOptions()
			switch key {
			case "esc":
				m.focus = focusCircuit
				m.editCell = nil
			case "up", "k":
				if m.editMenuIdx > 0 {
					m.editMenuIdx--
				}
			case "down", "j":
				if m.editMenuIdx < len(editOptions)-1 {
					m.editMenuIdx++
				}
			case "enter":
				if m.editMenuIdx < len(editOptions) {
					opt := editOptions[m.editMenuIdx]
					switch opt.action {
					case "edit_param":
						m.paramInput = ""
						m.focus = focusEditParam
					case "edit_wire":
						m.editWireIdx = opt.idx
						m.targetQubit = m.editCell.Qubits[opt.idx]
						m.focus = focusEditWire
					case "edit_control":
						m.editControlIdx = opt.idx
						m.targetQubit = m.editCell.Controls[opt.idx]
						m.focus = focusEditControl
					case "delete":
						wire := m.cursorQubit
						if len(m.editCell.Qubits) > 0 {
							wire = m.editCell.Qubits[0]
						}
						m.grid.removeAt(m.editOrigStep, wire)
						m.editCell = nil
						m.focus = focusCircuit
						m.syncFromGrid()
					}
				}
			}

		case focusEditParam:
			switch key {
			case "esc":
				m.paramInput = ""
				m.focus = focusEditCell
			case "backspace":
				if len(m.paramInput) > 0 {
					m.paramInput = m.paramInput[:len(m.paramInput)-1]
				}
			case "enter":
				if m.editCell != nil {
					params := parseParams(m.paramInput)
					if m.paramInput != "" && params == nil {
						m.statusMsg = "Invalid parameter: use numbers or pi expressions (e.g. pi/2, 3*pi/4)"
						break
					}
					if len(params) > 0 {
						if err := m.validateParams(m.editCell, params); err != nil {
							m.statusMsg = fmt.Sprintf("Invalid parameter: %v", err)
							break
						}
						m.editCell.Params = params
					}
					m.syncFromGrid()
				}
				m.paramInput = ""
				m.focus = focusEditCell
			default:
				m.paramInput += filterParamKey(key)
			}

		case focusEditWire:
			switch key {
			case "esc":
				m.focus = focusEditCell
			case "up", "k":
				for next := m.targetQubit - 1; next >= 0; next-- {
					if !m.editCell.references(next) {
						m.targetQubit = next
						break
					}
				}
			case "down", "j":
				for next := m.targetQubit + 1; next < m.grid.qubits; next++ {
					if !m.editCell.references(next) {
						m.targetQubit = next
						break
					}
				}
			case "enter":
				if m.editCell != nil {
					if other := m.grid.at(m.editOrigStep, m.targetQubit); other != nil && other != m.editCell {
						m.statusMsg = "Cannot move: wire already occupied at this step"
					} else {
						m.editCell.Qubits[m.editWireIdx] = m.targetQubit
						m.syncFromGrid()
					}
				}
				m.focus = focusEditCell
			}

		case focusEditControl:
			switch key {
			case "esc":
				m.focus = focusEditCell
			case "up", "k":
				for next := m.targetQubit - 1; next >= 0; next-- {
					if !m.editCell.references(next) {
						m.targetQubit = next
						break
					}
				}
			case "down", "j":
				for next := m.targetQubit + 1; next < m.grid.qubits; next++ {
					if !m.editCell.references(next) {
						m.targetQubit = next
						break
					}
				}
			case "enter":
				if m.editCell != nil && m.editControlIdx < len(m.editCell.Controls) {
					if other := m.grid.at(m.editOrigStep, m.targetQubit); other != nil && other != m.editCell {
						m.statusMsg = "Cannot move: wire already occupied at this step"
					} else {
						m.editCell.Controls[m.editControlIdx] = m.targetQubit
						m.syncFromGrid()
					}
				}
				m.focus = focusEditCell
			}

		case focusInputParam:
			switch key {
			case "esc":
				m.focus = focusCircuit
				m.clearPending()
			case "backspace":
				if len(m.paramInput) > 0 {
					m.paramInput = m.paramInput[:len(m.paramInput)-1]
				}
			case "enter":
				params := parseParams(m.paramInput)
				if m.paramInput != "" && params == nil {
					m.statusMsg = "Invalid parameter: use numbers or pi expressions (e.g. pi/2, 3*pi/4)"
					break
				}
				if m.pending != nil {
					m.afterParams(*m.pending)
				} else {
					m.focus = focusCircuit
				}
			default:
				m.paramInput += filterParamKey(key)
			}

		case focusEditor:
			switch key {
			case "tab":
				m.focus = focusCircuit
				m.irEditor.Blur()
			default:
				var cmd tea.Cmd
				m.irEditor, cmd = m.irEditor.Update(msg)
				cmds = append(cmds, cmd)
				m.parseEditorInput()
			}
		}
	}

	return m, tea.Batch(cmds...)
}

// filterParamKey keeps only the characters parameter expressions use.
func filterParamKey(key string) string {
	if len(key) != 1 {
		return ""
	}
	ch := key[0]
	if (ch >= '0' && ch <= '9') || ch == '.' || ch == ',' || ch == '-' || ch == 'e' || ch == 'E' || ch == '+' ||
		ch == 'p' || ch == 'i' || ch == '*' || ch == '/' {
		return key
	}
	return ""
}

// validateParams checks new parameters against the cell's builder before
// committing them.
func (m *Model) validateParams(p *placed, params []float64) error {
	if p.Kind == cellNoise {
		_, err := buildChannel(p.Name, params)
		return err
	}
	_, err := gates.Build(p.Name, params...)
	return err
}

// paramCount looks a gate or channel id up in the menu to see how many
// parameter slots it exposes.
func paramCount(name string) int {
	for _, cat := range opMenu {
		for _, it := range cat.items {
			if it.id == name {
				return it.params
			}
		}
	}
	return 0
}

// editOption represents an option in the edit cell menu.
type editOption struct {
	label  string
	action string
	idx    int
}

// getEditOptions returns available edit options for the current cell.
func (m *Model) getEditOptions() []editOption {
	p := m.editCell
	if p == nil {
		return nil
	}
	var opts []editOption

	if p.Kind != cellProject && (len(p.Params) > 0 || paramCount(p.Name) > 0) {
		paramStr := formatParams(p.Params)
		if paramStr == "" {
			paramStr = "none"
		}
		opts = append(opts, editOption{
			label:  fmt.Sprintf("Parameters: %s", paramStr),
			action: "edit_param",
		})
	}

	for i, q := range p.Qubits {
		opts = append(opts, editOption{
			label:  fmt.Sprintf("%s: q[%d]", wireLabel(p, i), q),
			action: "edit_wire",
			idx:    i,
		})
	}
	for i, cq := range p.Controls {
		opts = append(opts, editOption{
			label:  fmt.Sprintf("Extra control %d: q[%d]", i+1, cq),
			action: "edit_control",
			idx:    i,
		})
	}

	opts = append(opts, editOption{
		label:  "Delete",
		action: "delete",
	})

	return opts
}

// wireLabel names the role of the i-th wire of a cell.
func wireLabel(p *placed, i int) string {
	if p.Kind != cellGate || len(p.Qubits) == 1 {
		return "Target"
	}
	nc, zero := ctrlWires(p.Name)
	if i < nc {
		switch {
		case zero:
			return "0-Control"
		case nc > 1:
			return fmt.Sprintf("Control %d", i+1)
		default:
			return "Control"
		}
	}
	if len(p.Qubits)-nc > 1 {
		return fmt.Sprintf("Qubit %d", i-nc+1)
	}
	return "Target"
}

// View renders the UI.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	editorWidth := m.width / 3
	circuitWidth := m.width - editorWidth - 4
	controlsHeight := 6
	bodyHeight := max(m.height-controlsHeight-2, 6)

	circuitPanel := m.renderCircuitPanel(circuitWidth, bodyHeight)
	editorPanel := m.renderEditorPanel(editorWidth, bodyHeight/2)
	resultsPanel := m.renderResultsPanel(editorWidth, bodyHeight-bodyHeight/2)
	rightCol := lipgloss.JoinVertical(lipgloss.Left, editorPanel, resultsPanel)
	controlsPanel := m.renderControlsPanel(m.width-4, controlsHeight-2)

	topRow := lipgloss.JoinHorizontal(lipgloss.Top, circuitPanel, rightCol)
	frame := lipgloss.JoinVertical(lipgloss.Left, topRow, controlsPanel)

	// Render menu overlay when in menu mode
	if m.focus == focusMenu {
		frame = overlayAt(frame, m.renderMenu(), 2, 2)
	}

	// Render parameter input overlay
	if m.focus == focusInputParam || m.focus == focusEditParam {
		frame = overlayAt(frame, m.renderParamInput(), 2, 2)
	}

	// Render edit cell menu overlay
	if m.focus == focusEditCell {
		frame = overlayAt(frame, m.renderEditMenu(), 2, 2)
	}

	return frame
}
