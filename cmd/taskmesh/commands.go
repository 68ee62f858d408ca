package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/taskmesh/taskmesh/dispatch"
	"github.com/taskmesh/taskmesh/events"
	"github.com/taskmesh/taskmesh/ledger"
	"github.com/taskmesh/taskmesh/task"
)

var titleCase = cases.Title(language.English)

// --- login ---

var loginCmd = &cobra.Command{
	Use:   "login <username> <password>",
	Short: "Obtain a JWT auth token",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		body := fmt.Sprintf(`{"username":%q,"password":%q}`, args[0], args[1])
		var resp map[string]string
		if err := cli.post("/api/auth/login", strings.NewReader(body), &resp); err != nil {
			return err
		}
		fmt.Println(resp["token"])
		return nil
	},
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		var result struct {
			Status    string          `json:"status"`
			Version   string          `json:"version"`
			Uptime    string          `json:"uptime"`
			Executors map[string]bool `json:"executors"`
		}
		if err := cli.get("/api/status", &result); err != nil {
			return err
		}
		fmt.Printf("status:  %s\n", result.Status)
		fmt.Printf("version: %s\n", result.Version)
		fmt.Printf("uptime:  %s\n", result.Uptime)
		for _, class := range slices.Sorted(maps.Keys(result.Executors)) {
			state := "healthy"
			if !result.Executors[class] {
				state = "unhealthy"
			}
			fmt.Printf("%s executors: %s\n", classDisplay(class), state)
		}
		return nil
	},
}

// --- task ---

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Create, inspect, and drive tasks",
}

var (
	taskPriority  int
	taskDependsOn []string
	taskStatus    string
	taskLimit     int
)

func init() {
	taskCreateCmd.Flags().IntVar(&taskPriority, "priority", 1, "priority (0=low .. 3=critical)")
	taskCreateCmd.Flags().StringSliceVar(&taskDependsOn, "depends-on", nil, "task ids this task depends on")
	taskListCmd.Flags().StringVar(&taskStatus, "status", "", "filter by status")
	taskListCmd.Flags().IntVar(&taskLimit, "limit", 50, "maximum tasks to list")

	taskCmd.AddCommand(taskCreateCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskGetCmd)
	taskCmd.AddCommand(taskExecuteCmd)
	taskCmd.AddCommand(taskCancelCmd)
}

var taskCreateCmd = &cobra.Command{
	Use:   "create <description>",
	Short: "Submit a new task",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		payload := map[string]any{
			"description": strings.Join(args, " "),
			"priority":    taskPriority,
		}
		if len(taskDependsOn) > 0 {
			payload["depends_on"] = taskDependsOn
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		var created task.Task
		if err := cli.post("/api/tasks", strings.NewReader(string(body)), &created); err != nil {
			return err
		}
		fmt.Printf("created task %s\n", created.ID)
		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		path := fmt.Sprintf("/api/tasks?limit=%d", taskLimit)
		if taskStatus != "" {
			path += "&status=" + taskStatus
		}
		var tasks []*task.Task
		if err := cli.get(path, &tasks); err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Println("no tasks")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDESCRIPTION\tSTATUS\tCLASS\tAGE")
		for _, t := range tasks {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				t.ID,
				truncate(t.Description, 40),
				t.Status,
				classDisplay(t.ExecutorClass),
				formatAge(t.CreatedAt),
			)
		}
		return w.Flush()
	},
}

var taskGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		var t task.Task
		if err := cli.get("/api/tasks/"+args[0], &t); err != nil {
			return err
		}
		printTask(&t)
		return nil
	},
}

var taskExecuteCmd = &cobra.Command{
	Use:   "execute <id>",
	Short: "Run a pending task through routing, execution, and reward",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		var out dispatch.Outcome
		if err := cli.post("/api/tasks/"+args[0]+"/execute", nil, &out); err != nil {
			return err
		}
		printTask(out.Task)
		if out.Reward > 0 {
			fmt.Printf("reward:       %.2f\n", out.Reward)
		}
		return nil
	},
}

var taskCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Cancel a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		var t task.Task
		if err := cli.post("/api/tasks/"+args[0]+"/cancel", nil, &t); err != nil {
			return err
		}
		fmt.Printf("task %s cancelled\n", t.ID)
		return nil
	},
}

// --- balance / leaderboard ---

var balanceCmd = &cobra.Command{
	Use:   "balance <executor-id>",
	Short: "Show an executor's reward balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		var b ledger.AgentBalance
		if err := cli.get("/api/balances/"+args[0], &b); err != nil {
			return err
		}
		fmt.Printf("executor:        %s\n", b.ExecutorID)
		fmt.Printf("balance:         %.2f\n", b.Balance)
		fmt.Printf("total earned:    %.2f\n", b.TotalEarned)
		fmt.Printf("total spent:     %.2f\n", b.TotalSpent)
		fmt.Printf("completed tasks: %d\n", b.CompletedTasks)
		return nil
	},
}

var leaderboardLimit int

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Show executors ranked by balance",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		var entries []*ledger.AgentBalance
		if err := cli.get(fmt.Sprintf("/api/leaderboard?limit=%d", leaderboardLimit), &entries); err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("no balances")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RANK\tEXECUTOR\tBALANCE\tEARNED\tTASKS")
		for i, b := range entries {
			fmt.Fprintf(w, "%d\t%s\t%.2f\t%.2f\t%d\n",
				i+1, b.ExecutorID, b.Balance, b.TotalEarned, b.CompletedTasks)
		}
		return w.Flush()
	},
}

func init() {
	leaderboardCmd.Flags().IntVar(&leaderboardLimit, "limit", 10, "maximum entries")
}

// --- events ---

var eventsLimit int

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent lifecycle events",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		var evts []*events.Event
		if err := cli.get(fmt.Sprintf("/api/events?limit=%d", eventsLimit), &evts); err != nil {
			return err
		}
		if len(evts) == 0 {
			fmt.Println("no events")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tTYPE\tTASK\tEXECUTOR")
		for _, e := range evts {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				e.Timestamp.Local().Format(time.TimeOnly),
				e.Type, e.TaskID, e.ExecutorID)
		}
		return w.Flush()
	},
}

func init() {
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 50, "maximum events")
}

// --- helpers ---

func printTask(t *task.Task) {
	fmt.Printf("id:           %s\n", t.ID)
	fmt.Printf("description:  %s\n", truncate(t.Description, 100))
	fmt.Printf("status:       %s\n", t.Status)
	fmt.Printf("priority:     %d\n", t.Priority)
	if t.ExecutorClass != "" {
		fmt.Printf("class:        %s\n", classDisplay(t.ExecutorClass))
	}
	if len(t.DependsOn) > 0 {
		fmt.Printf("depends on:   %s\n", strings.Join(t.DependsOn, ", "))
	}
	if t.Result != "" {
		fmt.Printf("result:       %s\n", truncate(t.Result, 100))
	}
	if t.Error != "" {
		fmt.Printf("error:        %s\n", t.Error)
	}
	if t.AttestationHash != "" {
		fmt.Printf("attestation:  %s\n", t.AttestationHash)
		fmt.Printf("workload:     %.2f\n", t.Workload)
	}
	fmt.Printf("created:      %s\n", formatAge(t.CreatedAt))
}

// classDisplay renders an executor class name for table output.
func classDisplay(class string) string {
	if class == "" {
		return "-"
	}
	return titleCase.String(class)
}

// formatAge returns a human-readable relative time string.
func formatAge(t time.Time) string {
	d := time.Since(t)
	if d < time.Minute {
		return "just now"
	}
	if m := int(d.Minutes()); m < 60 {
		return fmt.Sprintf("%dm ago", m)
	}
	if h := int(d.Hours()); h < 24 {
		return fmt.Sprintf("%dh ago", h)
	}
	return fmt.Sprintf("%dd ago", int(d.Hours())/24)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
