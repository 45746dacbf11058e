package cli

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/mosaic/pkg/api"
	"github.com/matzehuels/mosaic/pkg/errors"
)

const (
	defaultWatchInterval = time.Second
	progressWidth        = 40
)

var (
	barFilledStyle = lipgloss.NewStyle().Foreground(colorGreen)
	barEmptyStyle  = lipgloss.NewStyle().Foreground(colorDim)
	listDimStyle   = lipgloss.NewStyle().Foreground(colorDim)
)

// watchCommand creates the watch command, a live view of one worker.
func (c *CLI) watchCommand() *cobra.Command {
	var (
		interval time.Duration
		output   string
	)

	cmd := &cobra.Command{
		Use:   "watch <id>",
		Short: "Follow a worker as its mosaic fills up",
		Example: `  mosaic watch 8214
  mosaic watch 8214 --interval 5s -o final.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return fmt.Errorf("--interval must be positive")
			}
			model := newWatchModel(cmd.Context(), args[0], c.client().Art, interval)
			final, err := tea.NewProgram(model, tea.WithContext(cmd.Context())).Run()
			if err != nil {
				return err
			}
			m := final.(watchModel)
			if m.err != nil && m.art == nil {
				return m.err
			}
			if m.art == nil {
				return nil
			}
			printArt(m.art)
			if output == "" {
				return nil
			}
			data, err := api.ArtPNG(m.art)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			printFile(output)
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", defaultWatchInterval, "polling interval")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the last mosaic PNG to this file on exit")

	return cmd
}

// =============================================================================
// watchModel - Live worker view
// =============================================================================

// artFunc fetches the latest art of a worker.
type artFunc func(ctx context.Context, id string) (*api.ArtResponse, error)

type artMsg struct {
	art *api.ArtResponse
	err error
}

type tickMsg struct{}

// contributor aggregates the tiles held by one user.
type contributor struct {
	user     string
	hashtags []string
	tiles    int
}

// watchModel polls a worker and renders its progress and contributors.
type watchModel struct {
	ctx      context.Context
	id       string
	fetch    artFunc
	interval time.Duration

	art      *api.ArtResponse
	err      error
	updates  int
	rows     []contributor
	offset   int
	height   int
	quitting bool
}

func newWatchModel(ctx context.Context, id string, fetch artFunc, interval time.Duration) watchModel {
	return watchModel{ctx: ctx, id: id, fetch: fetch, interval: interval, height: 10}
}

func (m watchModel) Init() tea.Cmd {
	return m.poll()
}

func (m watchModel) poll() tea.Cmd {
	return func() tea.Msg {
		art, err := m.fetch(m.ctx, m.id)
		return artMsg{art: art, err: err}
	}
}

func (m watchModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "up", "k":
			if m.offset > 0 {
				m.offset--
			}
		case "down", "j":
			if m.offset < len(m.rows)-m.height {
				m.offset++
			}
		}
	case tea.WindowSizeMsg:
		m.height = max(msg.Height-12, 3)
	case artMsg:
		if msg.err != nil {
			m.err = msg.err
			if errors.Is(msg.err, errors.ErrCodeWorkerNotFound) {
				m.quitting = true
				return m, tea.Quit
			}
			return m, m.tick()
		}
		m.err = nil
		if m.art == nil || msg.art.Snapshot != m.art.Snapshot {
			m.updates++
		}
		m.art = msg.art
		m.rows = contributors(msg.art.PiecePosts)
		m.offset = min(m.offset, max(len(m.rows)-m.height, 0))
		if !msg.art.Running {
			m.quitting = true
			return m, tea.Quit
		}
		return m, m.tick()
	case tickMsg:
		return m, m.poll()
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Worker " + m.id))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ scroll  q quit"))
	b.WriteString("\n\n")

	if m.art == nil {
		if m.err != nil {
			b.WriteString(styleIconError.Render(iconError) + " " + errors.UserMessage(m.err) + "\n")
		} else {
			b.WriteString(StyleDim.Render("waiting for first snapshot...") + "\n")
		}
		return b.String()
	}

	a := m.art
	filled := a.Slots - a.Empty
	b.WriteString(progressBar(filled, a.Slots, progressWidth))
	b.WriteString(" " + StyleNumber.Render(fmt.Sprintf("%d/%d", filled, a.Slots)) + StyleDim.Render(" tiles"))
	b.WriteString("\n")
	b.WriteString(StyleDim.Render(fmt.Sprintf("snapshot %d · %d updates seen · #%s",
		a.Snapshot, m.updates, strings.Join(a.Hashtags, " #"))))
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(StyleWarning.Render("poll failed: "+errors.UserMessage(m.err)) + "\n")
	}
	if a.Error != "" {
		b.WriteString(StyleWarning.Render(a.Error) + "\n")
	}
	b.WriteString("\n")

	if len(m.rows) == 0 {
		b.WriteString(StyleDim.Render("no pieces yet"))
		return b.String()
	}

	end := min(m.offset+m.height, len(m.rows))
	rows := make([][]string, 0, end-m.offset)
	for _, r := range m.rows[m.offset:end] {
		rows = append(rows, []string{r.user, strconv.Itoa(r.tiles), strings.Join(r.hashtags, ", ")})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("User", "Tiles", "Hashtags").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if col == 1 {
				return lipgloss.NewStyle().Foreground(colorCyan)
			}
			return lipgloss.NewStyle().Foreground(colorWhite)
		})

	b.WriteString(t.Render())
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d-%d/%d]", m.offset+1, end, len(m.rows))))
	return b.String()
}

// contributors groups pieces by user, most tiles first.
func contributors(pieces []api.PiecePost) []contributor {
	byUser := make(map[string]*contributor)
	for _, p := range pieces {
		c, ok := byUser[p.UserName]
		if !ok {
			c = &contributor{user: p.UserName}
			byUser[p.UserName] = c
		}
		c.tiles++
		if p.Hashtag != "" && !slices.Contains(c.hashtags, p.Hashtag) {
			c.hashtags = append(c.hashtags, p.Hashtag)
		}
	}
	out := make([]contributor, 0, len(byUser))
	for _, c := range byUser {
		slices.Sort(c.hashtags)
		out = append(out, *c)
	}
	slices.SortFunc(out, func(a, b contributor) int {
		if n := cmp.Compare(b.tiles, a.tiles); n != 0 {
			return n
		}
		return cmp.Compare(a.user, b.user)
	})
	return out
}

func progressBar(done, total, width int) string {
	n := 0
	if total > 0 {
		n = done * width / total
	}
	return barFilledStyle.Render(strings.Repeat("█", n)) + barEmptyStyle.Render(strings.Repeat("░", width-n))
}
