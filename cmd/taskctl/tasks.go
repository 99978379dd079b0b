package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"taskflow/domain"
	"taskflow/store"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List tasks",
	Aliases: []string{"ls"},
	Args:    cobra.NoArgs,
	RunE:    runList,
}

var (
	listSearch   string
	listCategory string
	listPriority string
	listStatus   string
	listSort     string
	listPage     int
	listLimit    int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show task counts by status",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var addCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdd,
}

var (
	addDescription string
	addCategory    string
	addPriority    string
	addStatus      string
	addDue         string
	addParent      string
)

var updateCmd = &cobra.Command{
	Use:     "update <id>",
	Short:   "Change fields of a task",
	Aliases: []string{"edit"},
	Args:    cobra.ExactArgs(1),
	RunE:    runUpdate,
}

var (
	updateTitle       string
	updateDescription string
	updateCategory    string
	updatePriority    string
	updateStatus      string
	updateDue         string
)

var deleteCmd = &cobra.Command{
	Use:     "delete <id>...",
	Short:   "Delete one or more tasks",
	Aliases: []string{"rm"},
	Args:    cobra.MinimumNArgs(1),
	RunE:    runDelete,
}

var subtasksCmd = &cobra.Command{
	Use:   "subtasks <id>",
	Short: "List the subtasks of a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubtasks,
}

func init() {
	rootCmd.AddCommand(listCmd, statsCmd, addCmd, updateCmd, deleteCmd, subtasksCmd)

	listCmd.Flags().StringVarP(&listSearch, "search", "s", "", "Search text")
	listCmd.Flags().StringVar(&listCategory, "category", "", "Only tasks in this category")
	listCmd.Flags().StringVar(&listPriority, "priority", "", "Only tasks with this priority (low, medium, high)")
	listCmd.Flags().StringVar(&listStatus, "status", "", "Only tasks with this status (todo, in_progress, completed or canonical)")
	listCmd.Flags().StringVar(&listSort, "sort", "", "Sort field")
	listCmd.Flags().IntVar(&listPage, "page", 0, "Page number")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "Tasks per page")

	addCmd.Flags().StringVarP(&addDescription, "description", "d", "", "Description")
	addCmd.Flags().StringVarP(&addCategory, "category", "c", "", "Category")
	addCmd.Flags().StringVarP(&addPriority, "priority", "p", string(domain.PriorityMedium), "Priority (low, medium, high)")
	addCmd.Flags().StringVar(&addStatus, "status", string(domain.StatusPending), "Initial status")
	addCmd.Flags().StringVar(&addDue, "due", "", "Due date (YYYY-MM-DD or RFC 3339)")
	addCmd.Flags().StringVar(&addParent, "parent", "", "Parent task id")

	updateCmd.Flags().StringVar(&updateTitle, "title", "", "New title")
	updateCmd.Flags().StringVarP(&updateDescription, "description", "d", "", "New description")
	updateCmd.Flags().StringVarP(&updateCategory, "category", "c", "", "New category")
	updateCmd.Flags().StringVarP(&updatePriority, "priority", "p", "", "New priority")
	updateCmd.Flags().StringVar(&updateStatus, "status", "", "New status (todo, in_progress, completed or canonical)")
	updateCmd.Flags().StringVar(&updateDue, "due", "", "New due date")
}

// listFilters merges the configured defaults with the flags given to list.
func listFilters(defaults domain.Filters) domain.Filters {
	f := defaults
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&f.Search, listSearch)
	set(&f.Category, listCategory)
	set(&f.Priority, listPriority)
	set(&f.Status, domain.MapStatus(listStatus))
	set(&f.SortBy, listSort)
	if listPage > 0 {
		f.Page = listPage
	}
	if listLimit > 0 {
		f.Limit = listLimit
	}
	return f
}

// snapshotError turns an error recorded by a fetch into a command failure.
func snapshotError(snap store.Snapshot) error {
	if snap.Err != "" {
		return errors.New(snap.Err)
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	s.store.FetchTasks(cmd.Context(), listFilters(s.cfg.Defaults))
	snap := s.store.Snapshot()
	if err := snapshotError(snap); err != nil {
		return err
	}
	printTasks(cmd.OutOrStdout(), snap.Tasks, time.Now())
	fmt.Fprintf(cmd.OutOrStdout(), "\npage %d of %d (%d tasks)\n", snap.Page, snap.TotalPages, snap.Total)
	return nil
}

func printTasks(w io.Writer, tasks []domain.Task, now time.Time) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "no tasks")
		return
	}
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			t.ID,
			t.Title,
			string(t.Status),
			string(t.Priority),
			t.Category,
			domain.Countdown(t.DueDate, now, t.Status == domain.StatusCompleted).Text,
		})
	}
	fmt.Fprint(w, formatTable([]string{"ID", "TITLE", "STATUS", "PRIORITY", "CATEGORY", "DUE"}, rows))
}

func runStats(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	s.store.FetchStats(cmd.Context())
	snap := s.store.Snapshot()
	if err := snapshotError(snap); err != nil {
		return err
	}
	st := snap.Stats
	if st == nil {
		return errors.New("no stats returned")
	}
	fmt.Fprint(cmd.OutOrStdout(), formatTable(
		[]string{"TOTAL", "PENDING", "IN PROGRESS", "COMPLETED"},
		[][]string{{strconv.Itoa(st.Total), strconv.Itoa(st.Pending), strconv.Itoa(st.InProgress), strconv.Itoa(st.Completed)}},
	))
	return nil
}

func parseDue(raw string) (*domain.Date, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	due, err := parseDue(addDue)
	if err != nil {
		return err
	}
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	task, err := s.store.AddTask(cmd.Context(), domain.Draft{
		Title:       args[0],
		Description: addDescription,
		Category:    addCategory,
		Status:      domain.Status(domain.MapStatus(addStatus)),
		Priority:    domain.Priority(addPriority),
		DueDate:     due,
		ParentID:    addParent,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", task.ID)
	return nil
}

// buildUpdate includes only the flags the user set.
func buildUpdate(cmd *cobra.Command) (domain.Update, error) {
	var u domain.Update
	flags := cmd.Flags()
	if flags.Changed("title") {
		u.Title = &updateTitle
	}
	if flags.Changed("description") {
		u.Description = &updateDescription
	}
	if flags.Changed("category") {
		u.Category = &updateCategory
	}
	if flags.Changed("priority") {
		p := domain.Priority(updatePriority)
		u.Priority = &p
	}
	if flags.Changed("status") {
		st := domain.Status(domain.MapStatus(updateStatus))
		u.Status = &st
	}
	if flags.Changed("due") {
		due, err := parseDue(updateDue)
		if err != nil {
			return u, err
		}
		if due == nil {
			// An explicit empty --due clears the deadline.
			due = &domain.Date{}
		}
		u.DueDate = due
	}
	return u, nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	u, err := buildUpdate(cmd)
	if err != nil {
		return err
	}
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	task, err := s.store.UpdateTask(cmd.Context(), args[0], u)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "updated %s (%s)\n", task.ID, task.Status)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	for _, id := range args {
		if err := s.store.DeleteTask(cmd.Context(), id); err != nil {
			return fmt.Errorf("delete %s: %w", id, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
	}
	return nil
}

func runSubtasks(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	tasks, err := s.client.Subtasks(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	printTasks(cmd.OutOrStdout(), tasks, time.Now())
	return nil
}
