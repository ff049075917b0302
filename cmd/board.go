package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fieldboard/app"
	"github.com/kilianp07/fieldboard/core/board"
	"github.com/kilianp07/fieldboard/core/dispatch"
	"github.com/kilianp07/fieldboard/core/model"
	"github.com/kilianp07/fieldboard/infra/logger"
	"github.com/kilianp07/fieldboard/pkg/export"
)

var (
	boardDate  string
	exportFmt  string
	exportOut  string
	assignJob  string
	assignLane string
	assignPos  int
	assignVer  uint64
)

const cmdTimeout = 30 * time.Second

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Inspect and edit a day's board",
}

var boardShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the lanes of a board",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *app.Service) error {
			v, err := svc.Manager.Board(ctx, dispatch.GetBoard{Date: boardDate})
			if err != nil {
				return err
			}
			return printBoard(cmd.OutOrStdout(), v)
		})
	},
}

var boardExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a board as json, csv or html",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *app.Service) error {
			v, err := svc.Manager.Board(ctx, dispatch.GetBoard{Date: boardDate})
			if err != nil {
				return err
			}
			var w io.Writer = cmd.OutOrStdout()
			if exportOut != "" {
				f, err := os.Create(exportOut)
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				w = f
			}
			return export.Write(w, exportFmt, v)
		})
	},
}

var boardAssignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Move a job to a vehicle lane",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *app.Service) error {
			res, err := svc.Manager.Assign(ctx, dispatch.AssignJob{
				Date:            boardDate,
				JobID:           assignJob,
				VehicleID:       assignLane,
				Position:        assignPos,
				ExpectedVersion: assignVer,
			})
			if err != nil {
				return fmt.Errorf("%s: %w", board.Code(err), err)
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "board %s at version %d (changed=%t)\n", res.Date, res.Version, res.Changed); err != nil {
				return err
			}
			return svc.Manager.Flush(ctx, res.Date)
		})
	},
}

func init() {
	today := model.DayKey(time.Now().UTC())
	boardCmd.PersistentFlags().StringVarP(&boardDate, "date", "d", today, "board day (YYYY-MM-DD)")
	boardExportCmd.Flags().StringVarP(&exportFmt, "format", "f", export.FormatJSON, "json, csv or html")
	boardExportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (stdout when empty)")
	boardAssignCmd.Flags().StringVar(&assignJob, "job", "", "job id")
	boardAssignCmd.Flags().StringVar(&assignLane, "vehicle", "", "target vehicle id or \"unassigned\"")
	boardAssignCmd.Flags().IntVar(&assignPos, "position", 0, "target position in the lane")
	boardAssignCmd.Flags().Uint64Var(&assignVer, "expected-version", 0, "board version the move is based on")
	_ = boardAssignCmd.MarkFlagRequired("job")
	_ = boardAssignCmd.MarkFlagRequired("vehicle")

	boardCmd.AddCommand(boardShowCmd, boardExportCmd, boardAssignCmd)
	rootCmd.AddCommand(boardCmd)
}

func withService(fn func(ctx context.Context, svc *app.Service) error) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("cli").Errorf("service close: %v", err)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
	defer cancel()
	return fn(ctx, svc)
}

func printBoard(w io.Writer, v board.View) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "board %s\tversion %d\n", v.Date, v.Version)
	if v.PersistenceDegraded {
		fmt.Fprintln(tw, "warning: persistence degraded")
	}
	fmt.Fprintln(tw, "LANE\tCAPACITY\tFILL\tJOBS")
	for _, l := range v.Lanes {
		ids := l.JobIDs()
		fmt.Fprintf(tw, "%s\t%s\t%.0f%%\t%s\n", l.VehicleID, l.Capacity, l.Fill*100, strings.Join(ids, ", "))
	}
	return tw.Flush()
}
