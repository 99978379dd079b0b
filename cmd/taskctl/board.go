package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"taskflow/domain"
	"taskflow/kanban"
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Show tasks as a kanban board",
	Args:  cobra.NoArgs,
	RunE:  runBoard,
}

var moveCmd = &cobra.Command{
	Use:   "move <task-id> <column-or-task-id>",
	Short: "Move a task to another column",
	Long: `Move a task to another board column.

The target is a column (todo, in_progress, completed) or the id of a task
already in the destination column. Moving within a column changes nothing.`,
	Args: cobra.ExactArgs(2),
	RunE: runMove,
}

var boardWidth int

func init() {
	rootCmd.AddCommand(boardCmd, moveCmd)
	boardCmd.Flags().IntVar(&boardWidth, "width", 32, "Column width")
}

var (
	columnStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238")).Padding(0, 1)
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230"))
	titleStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	urgencyStyle = map[domain.Urgency]lipgloss.Style{
		domain.UrgencyMuted:    mutedStyle,
		domain.UrgencyNormal:   lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		domain.UrgencySoon:     lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		domain.UrgencyWarning:  lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		domain.UrgencyCritical: lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		domain.UrgencyOverdue:  lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	}
)

func runBoard(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	s.store.FetchTasks(cmd.Context(), s.cfg.Defaults)
	snap := s.store.Snapshot()
	if err := snapshotError(snap); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderBoard(kanban.View(kanban.BuildBoard(snap.Tasks), time.Now()), boardWidth))
	return nil
}

func renderBoard(cols []kanban.ColumnView, width int) string {
	rendered := make([]string, 0, len(cols))
	for _, col := range cols {
		var b strings.Builder
		b.WriteString(headerStyle.Render(fmt.Sprintf("%s (%d)", col.Title, len(col.Cards))))
		for _, card := range col.Cards {
			b.WriteString("\n\n")
			b.WriteString(titleStyle.Render(card.Title))
			b.WriteString("\n")
			meta := []string{string(card.Priority)}
			if card.Category != "" {
				meta = append(meta, card.Category)
			}
			b.WriteString(mutedStyle.Render(strings.Join(meta, " · ") + "  " + card.ID))
			if card.Countdown.Text != "" {
				b.WriteString("\n")
				b.WriteString(urgencyStyle[card.Countdown.Urgency].Render(card.Countdown.Text))
			}
		}
		rendered = append(rendered, columnStyle.Width(width).Render(b.String()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func runMove(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	s.store.FetchTasks(cmd.Context(), s.cfg.Defaults)
	snap := s.store.Snapshot()
	if err := snapshotError(snap); err != nil {
		return err
	}
	b := kanban.BuildBoard(snap.Tasks)
	if _, ok := kanban.ResolveSource(b, args[0]); !ok {
		return fmt.Errorf("task %s is not on the board", args[0])
	}
	if _, ok := kanban.ResolveTarget(b, args[1]); !ok {
		return fmt.Errorf("unknown target %s", args[1])
	}
	mv, err := s.engine.Drop(cmd.Context(), b, args[0], args[1])
	if err != nil {
		return err
	}
	if mv.Applied {
		fmt.Fprintf(cmd.OutOrStdout(), "moved %s from %s to %s\n", mv.TaskID, mv.From, mv.To)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s already in %s\n", mv.TaskID, mv.To)
	}
	return nil
}
