package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/clipforge/internal/api/projects"
	"github.com/good-yellow-bee/clipforge/internal/models"
	"github.com/good-yellow-bee/clipforge/internal/timeline"
)

var (
	projectDBPath     string
	projectID         string
	projectOwner      string
	projectFPS        float64
	projectFrame      int
	projectSafeFrames int
)

// projectCmd represents the project command group
var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Project inspection commands",
	Long: `Commands for inspecting ClipForge projects.

These commands read the persisted project documents. Edits made in an
open editing session appear once the session has autosaved.

Examples:
  # List all projects
  clipctl project list

  # List projects owned by one account
  clipctl project list --owner maria

  # Show a project's timeline
  clipctl project show --id 3f2a...

  # Resolve the render instructions visible at frame 90
  clipctl project render --id 3f2a... --frame 90`,
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase(projectDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		var list []*models.Project
		if projectOwner != "" {
			owner, err := findUser(ctx, store.Users(), projectOwner)
			if err != nil {
				return err
			}
			list, err = store.Projects().ListByOwner(ctx, owner.ID)
			if err != nil {
				return fmt.Errorf("list projects: %w", err)
			}
		} else {
			list, err = store.Projects().List(ctx)
			if err != nil {
				return fmt.Errorf("list projects: %w", err)
			}
		}

		out := cmd.OutOrStdout()
		if GetOutput() == "json" {
			return writeJSON(out, list)
		}
		if len(list) == 0 {
			fmt.Fprintln(out, "No projects found.")
			return nil
		}
		fmt.Fprintln(out, renderProjects(list))
		fmt.Fprintf(out, "Total: %d project(s)\n", len(list))
		return nil
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a project's settings and timeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase(projectDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		p, err := store.Projects().Load(context.Background(), projectID)
		if err != nil {
			return fmt.Errorf("load project: %w", err)
		}

		out := cmd.OutOrStdout()
		if GetOutput() == "json" {
			return writeJSON(out, p)
		}

		fmt.Fprintf(out, "Project:    %s\n", p.Name)
		fmt.Fprintf(out, "ID:         %s\n", p.ID)
		fmt.Fprintf(out, "Owner:      %s\n", p.OwnerID)
		fmt.Fprintf(out, "FPS:        %g\n", p.FPS)
		fmt.Fprintf(out, "Resolution: %dx%d\n", p.Resolution.Width, p.Resolution.Height)
		if p.LastSyncedAt != nil {
			fmt.Fprintf(out, "Synced:     %s\n", humanize.Time(*p.LastSyncedAt))
		}
		fmt.Fprintln(out)
		if len(p.Elements) == 0 {
			fmt.Fprintln(out, "Timeline is empty.")
			return nil
		}
		fmt.Fprintln(out, renderElements(p.Elements))
		return nil
	},
}

var projectRenderCmd = &cobra.Command{
	Use:   "render",
	Short: "Resolve a project into render instructions",
	Long: `Resolve a project's timeline into frame-based render instructions.

--fps overrides the project's frame rate for this resolution only.
--frame keeps only the instructions visible at that frame.

Example:
  clipctl project render --id 3f2a... --fps 24 --frame 48 -o json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("fps") {
			if err := projects.ValidateFPS(projectFPS); err != nil {
				return fmt.Errorf("invalid fps: %w", err)
			}
		}
		var frame *int
		if cmd.Flags().Changed("frame") {
			if projectFrame < 0 {
				return fmt.Errorf("--frame must not be negative")
			}
			frame = &projectFrame
		}

		store, err := openDatabase(projectDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		p, err := store.Projects().Load(context.Background(), projectID)
		if err != nil {
			return fmt.Errorf("load project: %w", err)
		}
		if cmd.Flags().Changed("fps") {
			p.FPS = projectFPS
		}

		result := projects.Compose(timeline.NewResolver(projectSafeFrames), p, frame)

		out := cmd.OutOrStdout()
		if GetOutput() == "json" {
			return writeJSON(out, result)
		}
		fmt.Fprintf(out, "%s at %g fps, %d frame(s) total\n", p.Name, result.FPS, result.TotalFrames)
		if frame != nil {
			fmt.Fprintf(out, "Visible at frame %d:\n", *frame)
		}
		if len(result.Instructions) == 0 {
			fmt.Fprintln(out, "No instructions.")
			return nil
		}
		fmt.Fprintln(out, renderInstructions(result.Instructions))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectListCmd, projectShowCmd, projectRenderCmd)

	for _, cmd := range []*cobra.Command{projectListCmd, projectShowCmd, projectRenderCmd} {
		cmd.Flags().StringVar(&projectDBPath, "db", defaultDBPath, "path to SQLite database file")
	}

	projectListCmd.Flags().StringVar(&projectOwner, "owner", "", "only list projects owned by this username")

	for _, cmd := range []*cobra.Command{projectShowCmd, projectRenderCmd} {
		cmd.Flags().StringVar(&projectID, "id", "", "project ID (required)")
		cmd.MarkFlagRequired("id")
	}

	projectRenderCmd.Flags().Float64Var(&projectFPS, "fps", 0, "override the project's frame rate")
	projectRenderCmd.Flags().IntVar(&projectFrame, "frame", 0, "only show instructions visible at this frame")
	projectRenderCmd.Flags().IntVar(&projectSafeFrames, "safe-frames", 0, "frames of padding added to every element")
}

func renderProjects(list []*models.Project) string {
	rows := make([][]string, 0, len(list))
	for _, p := range list {
		rows = append(rows, []string{
			p.ID,
			truncate(p.Name, 30),
			p.OwnerID,
			strconv.Itoa(len(p.Elements)),
			strconv.FormatFloat(p.FPS, 'g', -1, 64),
			humanize.Time(p.UpdatedAt),
		})
	}
	return renderTable(
		[]string{"ID", "NAME", "OWNER", "ELEMENTS", "FPS", "UPDATED"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}

func renderElements(elements []models.TimelineElement) string {
	rows := make([][]string, 0, len(elements))
	for _, el := range elements {
		detail := ""
		switch {
		case el.Text != nil:
			detail = truncate(el.Text.Content, 40)
		case el.Media != nil:
			detail = truncate(el.Media.Source, 40)
		}
		rows = append(rows, []string{
			el.ID,
			string(el.Kind),
			fmt.Sprintf("%gs", el.PositionStart),
			fmt.Sprintf("%gs", el.PositionEnd),
			strconv.Itoa(el.ZIndex),
			strconv.Itoa(el.Opacity),
			detail,
		})
	}
	return renderTable(
		[]string{"ID", "TYPE", "START", "END", "Z", "OPACITY", "CONTENT"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
	)
}

func renderInstructions(instrs []timeline.RenderInstruction) string {
	rows := make([][]string, 0, len(instrs))
	for _, ri := range instrs {
		rows = append(rows, []string{
			strconv.Itoa(ri.ZOrder),
			ri.ElementID,
			string(ri.Kind),
			strconv.Itoa(ri.FromFrame),
			strconv.Itoa(ri.DurationFrames),
			strconv.FormatFloat(ri.Opacity, 'g', -1, 64),
			ri.Transform.CSS(),
		})
	}
	return renderTable(
		[]string{"Z", "ELEMENT", "TYPE", "FROM", "FRAMES", "OPACITY", "TRANSFORM"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	)
}
